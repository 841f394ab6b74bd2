package verso

import "time"

// ReviewLogEntry records one review transition. Entries are append-only:
// the scheduler produces them but never reads them back during normal
// operation. Stability and Difficulty are the post-review values, so a log
// can be replayed or audited without the card row.
type ReviewLogEntry struct {
	CardID         int64     `json:"card_id"`
	Rating         Rating    `json:"rating"`
	PriorState     State     `json:"prior_state"`
	ElapsedDays    float64   `json:"elapsed_days"`   // since previous review, clamped at 0.
	ScheduledDays  int       `json:"scheduled_days"` // 0 for sub-day learning steps.
	Stability      float64   `json:"stability"`
	Difficulty     float64   `json:"difficulty"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	ReviewDuration *int      `json:"review_duration,omitempty"` // milliseconds, optional.
}
