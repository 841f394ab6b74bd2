package verso

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewCardDefaults(t *testing.T) {
	before := time.Now()
	c := NewCard(42)
	after := time.Now()

	if c.CardID != 42 {
		t.Errorf("CardID = %d, want 42", c.CardID)
	}
	if c.State != New {
		t.Errorf("State = %v, want New", c.State)
	}
	if c.Stability != nil || c.Difficulty != nil || c.LastReview != nil {
		t.Error("a New card must have no memory state or review history")
	}
	if c.Reps != 0 || c.Lapses != 0 {
		t.Errorf("counters = (%d, %d), want (0, 0)", c.Reps, c.Lapses)
	}
	if c.Due.Before(before) || c.Due.After(after) {
		t.Errorf("Due = %v, want between %v and %v", c.Due, before, after)
	}
}

func TestCardValidate(t *testing.T) {
	if err := NewCard(1).Validate(); err != nil {
		t.Errorf("fresh card: %v", err)
	}
	if err := reviewCard().Validate(); err != nil {
		t.Errorf("review card: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Card)
	}{
		{"new card with stability", func(c *Card) { *c = NewCard(1); c.Stability = ptrF(1) }},
		{"new card with reps", func(c *Card) { *c = NewCard(1); c.Reps = 2 }},
		{"new card with last review", func(c *Card) { *c = NewCard(1); c.LastReview = ptrT(t0) }},
		{"nil stability", func(c *Card) { c.Stability = nil }},
		{"nil difficulty", func(c *Card) { c.Difficulty = nil }},
		{"nil last review", func(c *Card) { c.LastReview = nil }},
		{"zero reps with history", func(c *Card) { c.Reps = 0 }},
		{"negative stability", func(c *Card) { c.Stability = ptrF(-0.5) }},
		{"zero stability", func(c *Card) { c.Stability = ptrF(0) }},
		{"difficulty below 1", func(c *Card) { c.Difficulty = ptrF(0.5) }},
		{"difficulty above 10", func(c *Card) { c.Difficulty = ptrF(10.5) }},
		{"negative lapses", func(c *Card) { c.Lapses = -1 }},
		{"invalid state", func(c *Card) { c.State = State(42) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := reviewCard()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidCard) {
				t.Errorf("err = %v, want ErrInvalidCard", err)
			}
		})
	}
}

func TestCardCloneIsDeep(t *testing.T) {
	c := reviewCard()
	dup := c.clone()

	*dup.Stability = 99
	*dup.Difficulty = 9
	*dup.LastReview = t0.Add(time.Hour)

	if *c.Stability != 5.0 || *c.Difficulty != 5.0 || !c.LastReview.Equal(t0) {
		t.Error("mutating the clone leaked into the original")
	}
}

func TestCardJSONRoundTrip(t *testing.T) {
	c := reviewCard()
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Card
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.CardID != c.CardID || got.State != c.State || got.Reps != c.Reps {
		t.Error("round-trip lost scalar fields")
	}
	if got.Stability == nil || *got.Stability != *c.Stability {
		t.Error("round-trip lost stability")
	}
	if got.LastReview == nil || !got.LastReview.Equal(*c.LastReview) {
		t.Error("round-trip lost last review")
	}
}

func TestCardJSONNewCardOmitsHistory(t *testing.T) {
	data, err := json.Marshal(NewCard(1))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"stability", "difficulty", "last_review"} {
		if _, ok := m[key]; ok {
			t.Errorf("New card JSON should omit %q", key)
		}
	}
}
