// Package store persists cards, review logs, and parameter profiles.
//
// Scheduling state is keyed by (learner, card). Card rows carry a revision
// counter: SaveCard only applies when the caller's revision matches the
// stored one, which turns the candidates/commit flow into compare-and-swap
// and surfaces concurrent commits as ErrRevisionConflict instead of lost
// updates. Review logs are append-only.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/verso-study/verso"
)

var (
	// ErrNotFound is returned when a card, profile, or log row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrRevisionConflict is returned by SaveCard when the stored revision no
	// longer matches the caller's. The caller should re-read the card,
	// recompute candidates, and retry.
	ErrRevisionConflict = errors.New("store: revision conflict")

	// ErrDuplicateCard is returned by CreateCard for an existing (learner, card) key.
	ErrDuplicateCard = errors.New("store: card already exists")
)

// StoredCard is a scheduling card plus its persistence envelope.
type StoredCard struct {
	verso.Card

	LearnerID string    `json:"learner_id"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CardStore manages card scheduling state.
type CardStore interface {
	// NextCardID issues a new process-unique card ID.
	NextCardID() int64

	// CreateCard inserts a card for the learner at revision 1.
	CreateCard(ctx context.Context, learnerID string, card verso.Card) (StoredCard, error)

	// GetCard fetches one card, or ErrNotFound.
	GetCard(ctx context.Context, learnerID string, cardID int64) (StoredCard, error)

	// SaveCard replaces the card's state if sc.Revision still matches the
	// stored row, bumping the revision. Returns ErrRevisionConflict otherwise.
	SaveCard(ctx context.Context, sc StoredCard) (StoredCard, error)

	// DueCards lists the learner's cards due at or before now, oldest first.
	// limit <= 0 means no limit.
	DueCards(ctx context.Context, learnerID string, now time.Time, limit int) ([]StoredCard, error)

	// ListCards lists all of the learner's cards ordered by card ID.
	ListCards(ctx context.Context, learnerID string) ([]StoredCard, error)

	// DeleteCard removes a card and returns ErrNotFound if it was absent.
	// The card's review log rows are kept.
	DeleteCard(ctx context.Context, learnerID string, cardID int64) error
}

// ReviewLogStore appends and reads the immutable review history.
type ReviewLogStore interface {
	// AppendReview stores one review log entry and returns its row ID.
	AppendReview(ctx context.Context, learnerID string, entry verso.ReviewLogEntry) (string, error)

	// ReviewsForCard returns a card's reviews in review-time order.
	ReviewsForCard(ctx context.Context, learnerID string, cardID int64) ([]verso.ReviewLogEntry, error)

	// AllReviews returns every review for the learner in review-time order,
	// the shape the optimizer trains on.
	AllReviews(ctx context.Context, learnerID string) ([]verso.ReviewLogEntry, error)
}

// ProfileStore holds per-learner scheduling parameters.
type ProfileStore interface {
	// GetProfile fetches the learner's profile, or ErrNotFound if none was
	// ever stored.
	GetProfile(ctx context.Context, learnerID string) (verso.ParameterProfile, error)

	// PutProfile validates and upserts the learner's profile.
	PutProfile(ctx context.Context, learnerID string, profile verso.ParameterProfile) error
}

// Store bundles the three persistence concerns behind one handle.
type Store interface {
	CardStore
	ReviewLogStore
	ProfileStore

	Close() error
}
