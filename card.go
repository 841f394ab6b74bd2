package verso

import (
	"fmt"
	"math"
	"time"
)

// Card holds the per-(learner, item) memory state the scheduler operates on.
// A Card is replaced wholesale on every committed review; it is never
// partially mutated.
type Card struct {
	CardID     int64      `json:"card_id"`
	State      State      `json:"state"`
	Stability  *float64   `json:"stability,omitempty"`  // nil while State=New.
	Difficulty *float64   `json:"difficulty,omitempty"` // nil while State=New.
	Reps       int        `json:"reps"`                 // total processed reviews.
	Lapses     int        `json:"lapses"`               // Again ratings after graduation.
	Due        time.Time  `json:"due"`
	LastReview *time.Time `json:"last_review,omitempty"` // nil while State=New.
}

// NewCard creates a card in the New state with the given ID.
// Due is set to now (immediately reviewable).
func NewCard(id int64) Card {
	return Card{
		CardID: id,
		State:  New,
		Due:    time.Now(),
	}
}

// Validate checks the card's structural invariants: a New card carries no
// memory state and no review history, any other card carries finite
// stability > 0, difficulty in [1, 10], and a last-review timestamp.
func (c Card) Validate() error {
	if !c.State.isValid() {
		return fmt.Errorf("%w: state %d", ErrInvalidCard, int(c.State))
	}
	if c.Reps < 0 || c.Lapses < 0 {
		return fmt.Errorf("%w: negative reps (%d) or lapses (%d)", ErrInvalidCard, c.Reps, c.Lapses)
	}
	if c.State == New {
		if c.Stability != nil || c.Difficulty != nil || c.LastReview != nil || c.Reps != 0 {
			return fmt.Errorf("%w: New card with review history", ErrInvalidCard)
		}
		return nil
	}
	if c.Stability == nil || c.Difficulty == nil || c.LastReview == nil {
		return fmt.Errorf("%w: %s card missing memory state", ErrInvalidCard, c.State)
	}
	if c.Reps == 0 {
		return fmt.Errorf("%w: %s card with zero reps", ErrInvalidCard, c.State)
	}
	s, d := *c.Stability, *c.Difficulty
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return fmt.Errorf("%w: stability %f", ErrInvalidCard, s)
	}
	if math.IsNaN(d) || d < 1 || d > 10 {
		return fmt.Errorf("%w: difficulty %f", ErrInvalidCard, d)
	}
	return nil
}

// clone returns a deep copy of the card. Pointer fields are copied by value.
func (c Card) clone() Card {
	out := c
	if c.Stability != nil {
		v := *c.Stability
		out.Stability = &v
	}
	if c.Difficulty != nil {
		v := *c.Difficulty
		out.Difficulty = &v
	}
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}

func (c *Card) setStability(s float64) {
	c.Stability = &s
}

func (c *Card) setDifficulty(d float64) {
	c.Difficulty = &d
}
