package verso

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// defaultLearningSteps is the stock short-interval policy for a New card's
// first review: Again 1m, Hard 6m, Good 10m. These are scheduling policy,
// not model output; the memory formulas only take over once a card leaves
// the New state.
var defaultLearningSteps = [3]time.Duration{
	time.Minute,
	6 * time.Minute,
	10 * time.Minute,
}

// SchedulerConfig configures a Scheduler.
// Zero values produce sensible defaults; see field comments.
type SchedulerConfig struct {
	LearningSteps []time.Duration `json:"learning_steps"` // nil → [1m, 6m, 10m]; must hold one entry per non-Easy rating
	EnableFuzzing bool            `json:"enable_fuzzing"` // zero false → deterministic intervals
}

// Scheduler turns review events into updated card states. It holds only
// scheduling policy; the per-learner model parameters arrive with each
// call as a ParameterProfile.
type Scheduler struct {
	learningSteps [3]time.Duration
	enableFuzzing bool
	rng           *rand.Rand
}

// NewScheduler creates a Scheduler from the given config.
// Zero-value fields are filled with defaults; invalid values return an error.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	steps := defaultLearningSteps
	if cfg.LearningSteps != nil {
		if len(cfg.LearningSteps) != len(steps) {
			return nil, fmt.Errorf("verso: learning steps need %d entries (Again, Hard, Good), got %d",
				len(steps), len(cfg.LearningSteps))
		}
		for i, d := range cfg.LearningSteps {
			if d <= 0 {
				return nil, fmt.Errorf("verso: learning step %d must be positive, got %v", i, d)
			}
			steps[i] = d
		}
	}
	return &Scheduler{
		learningSteps: steps,
		enableFuzzing: cfg.EnableFuzzing,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Outcome is one hypothetical result of a review: the card as it would be
// after the rating, and the log entry describing the transition.
type Outcome struct {
	Card  Card           `json:"card"`
	Entry ReviewLogEntry `json:"entry"`
}

// Candidates holds the four hypothetical outcomes of reviewing one card at
// one moment, one per rating. Exactly one of them becomes authoritative
// via Commit.
type Candidates struct {
	Again Outcome `json:"again"`
	Hard  Outcome `json:"hard"`
	Good  Outcome `json:"good"`
	Easy  Outcome `json:"easy"`
}

// Outcome returns the candidate outcome for the given rating.
func (c Candidates) Outcome(r Rating) (Outcome, error) {
	switch r {
	case Again:
		return c.Again, nil
	case Hard:
		return c.Hard, nil
	case Good:
		return c.Good, nil
	case Easy:
		return c.Easy, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
}

// ScheduleCandidates computes the four hypothetical outcomes of reviewing
// card at time now under the given profile. The input card is not mutated,
// and nothing is persisted; the caller picks one outcome with Commit.
//
// Invalid card or profile values are rejected before any computation. A
// clock reading earlier than the card's last review is not an error: the
// elapsed time clamps to zero and scheduling proceeds.
func (s *Scheduler) ScheduleCandidates(card Card, profile ParameterProfile, now time.Time) (Candidates, error) {
	if err := profile.Validate(); err != nil {
		return Candidates{}, err
	}
	if err := card.Validate(); err != nil {
		return Candidates{}, err
	}

	m := model{w: profile.Weights}
	var cands Candidates
	for _, r := range Ratings {
		out, err := s.outcome(&m, card, profile, r, now)
		if err != nil {
			return Candidates{}, err
		}
		switch r {
		case Again:
			cands.Again = out
		case Hard:
			cands.Hard = out
		case Good:
			cands.Good = out
		case Easy:
			cands.Easy = out
		}
	}
	return cands, nil
}

// Commit selects the authoritative outcome for the rating the learner
// actually chose. The returned card wholly replaces the one the
// candidates were computed from; applying a Commit result on top of any
// other card state is the caller's lost-update bug to prevent.
func (s *Scheduler) Commit(cands Candidates, rating Rating) (Card, ReviewLogEntry, error) {
	out, err := cands.Outcome(rating)
	if err != nil {
		return Card{}, ReviewLogEntry{}, err
	}
	return out.Card, out.Entry, nil
}

// ReviewCard schedules and commits in one call, for callers that already
// know the rating (replays, imports, tests).
func (s *Scheduler) ReviewCard(card Card, profile ParameterProfile, rating Rating, now time.Time) (Card, ReviewLogEntry, error) {
	if !rating.IsValid() {
		return Card{}, ReviewLogEntry{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	cands, err := s.ScheduleCandidates(card, profile, now)
	if err != nil {
		return Card{}, ReviewLogEntry{}, err
	}
	return s.Commit(cands, rating)
}

// Retrievability returns the predicted recall probability for the card at
// the given time, or 0 for a card that has never been reviewed.
func (s *Scheduler) Retrievability(card Card, now time.Time) float64 {
	if card.LastReview == nil || card.Stability == nil {
		return 0
	}
	m := model{}
	return m.retrievability(elapsedDays(*card.LastReview, now), *card.Stability)
}

// Reschedule replays review log entries to rebuild the card's scheduling
// state, e.g. after changing profile weights. Returns ErrCardMismatch if
// any entry belongs to a different card.
func (s *Scheduler) Reschedule(card Card, profile ParameterProfile, entries []ReviewLogEntry) (Card, error) {
	c := card.clone()
	for _, e := range entries {
		if e.CardID != c.CardID {
			return Card{}, fmt.Errorf("%w: card %d, entry %d", ErrCardMismatch, c.CardID, e.CardID)
		}
		var err error
		c, _, err = s.ReviewCard(c, profile, e.Rating, e.ReviewedAt)
		if err != nil {
			return Card{}, err
		}
	}
	return c, nil
}

// outcome computes the single-rating transition.
func (s *Scheduler) outcome(m *model, card Card, profile ParameterProfile, rating Rating, now time.Time) (Outcome, error) {
	c := card.clone()

	if c.State == New {
		return s.firstReview(m, c, profile, rating, now)
	}

	elapsed := elapsedDays(*c.LastReview, now)
	r := m.retrievability(elapsed, *c.Stability)

	var stability float64
	priorState := c.State
	difficulty := m.nextDifficulty(*c.Difficulty, rating)
	if rating == Again {
		stability = m.nextForgetStability(*c.Difficulty, *c.Stability, r)
		c.Lapses++
		c.State = Relearning
	} else {
		stability = m.nextRecallStability(*c.Difficulty, *c.Stability, r, rating)
		c.State = Review
	}
	if !finite(stability, difficulty, r) {
		return Outcome{}, fmt.Errorf("%w: S=%f D=%f R=%f after %s", ErrDegenerateValue, stability, difficulty, r, rating)
	}

	days := m.nextInterval(stability, profile.TargetRetention, profile.MaximumInterval)
	if s.enableFuzzing {
		days = applyFuzz(days, profile.MaximumInterval, s.rng)
	}

	c.setStability(stability)
	c.setDifficulty(difficulty)
	c.Reps++
	c.LastReview = &now
	c.Due = now.Add(time.Duration(days) * 24 * time.Hour)

	return Outcome{
		Card: c,
		Entry: ReviewLogEntry{
			CardID:        c.CardID,
			Rating:        rating,
			PriorState:    priorState,
			ElapsedDays:   elapsed,
			ScheduledDays: days,
			Stability:     stability,
			Difficulty:    difficulty,
			ReviewedAt:    now,
		},
	}, nil
}

// firstReview handles the New state. All four ratings start from the seed
// stability and difficulty; Easy graduates straight to Review with a full
// model interval, the rest enter Learning on the short-step policy table.
func (s *Scheduler) firstReview(m *model, c Card, profile ParameterProfile, rating Rating, now time.Time) (Outcome, error) {
	stability := m.seedStability()
	difficulty := m.seedDifficulty()
	if !finite(stability, difficulty) {
		return Outcome{}, fmt.Errorf("%w: seed S=%f D=%f", ErrDegenerateValue, stability, difficulty)
	}

	scheduledDays := 0
	if rating == Easy {
		scheduledDays = m.nextInterval(stability, profile.TargetRetention, profile.MaximumInterval)
		c.State = Review
		c.Due = now.Add(time.Duration(scheduledDays) * 24 * time.Hour)
	} else {
		c.State = Learning
		c.Due = now.Add(s.learningSteps[rating-Again])
	}

	c.setStability(stability)
	c.setDifficulty(difficulty)
	c.Reps++
	c.LastReview = &now

	return Outcome{
		Card: c,
		Entry: ReviewLogEntry{
			CardID:        c.CardID,
			Rating:        rating,
			PriorState:    New,
			ElapsedDays:   0,
			ScheduledDays: scheduledDays,
			Stability:     stability,
			Difficulty:    difficulty,
			ReviewedAt:    now,
		},
	}, nil
}

// elapsedDays converts the gap between two clock readings to fractional
// days, clamped at zero. Learner clocks skew; a review from "the future"
// schedules as if no time had passed rather than failing.
func elapsedDays(lastReview, now time.Time) float64 {
	d := now.Sub(lastReview).Hours() / 24.0
	if d < 0 {
		return 0
	}
	return d
}

// schedulerJSON is the serialized form of a Scheduler.
type schedulerJSON struct {
	LearningSteps []int64 `json:"learning_steps"` // nanoseconds
	EnableFuzzing bool    `json:"enable_fuzzing"`
}

// MarshalJSON implements json.Marshaler.
func (s *Scheduler) MarshalJSON() ([]byte, error) {
	steps := make([]int64, len(s.learningSteps))
	for i, d := range s.learningSteps {
		steps[i] = int64(d)
	}
	return json.Marshal(schedulerJSON{
		LearningSteps: steps,
		EnableFuzzing: s.enableFuzzing,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// It rebuilds the scheduler from the serialized config.
func (s *Scheduler) UnmarshalJSON(data []byte) error {
	var j schedulerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	cfg := SchedulerConfig{EnableFuzzing: j.EnableFuzzing}
	if j.LearningSteps != nil {
		cfg.LearningSteps = make([]time.Duration, len(j.LearningSteps))
		for i, n := range j.LearningSteps {
			cfg.LearningSteps[i] = time.Duration(n)
		}
	}
	rebuilt, err := NewScheduler(cfg)
	if err != nil {
		return err
	}
	*s = *rebuilt
	return nil
}
