package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	"github.com/verso-study/verso"
	_ "modernc.org/sqlite"

	"github.com/verso-study/verso/store/migrations"
)

// SQLiteStore is the SQLite-backed implementation of Store.
type SQLiteStore struct {
	db   *sql.DB
	node *snowflake.Node
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath, applies pragmas
// and pending migrations, and returns a ready store. Use ":memory:" for an
// ephemeral database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}

	return &SQLiteStore{db: db, node: node}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// RunMigrations applies all pending migrations from the embedded SQL files.
func RunMigrations(db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NextCardID issues a new snowflake card ID.
func (s *SQLiteStore) NextCardID() int64 {
	return s.node.Generate().Int64()
}

// --- cards ---

const cardColumns = `learner_id, card_id, state, stability, difficulty, reps, lapses, due, last_review, revision, created_at, updated_at`

// CreateCard inserts the card for the learner at revision 1.
func (s *SQLiteStore) CreateCard(ctx context.Context, learnerID string, card verso.Card) (StoredCard, error) {
	if err := card.Validate(); err != nil {
		return StoredCard{}, err
	}

	now := time.Now().UTC()
	state, err := card.State.MarshalText()
	if err != nil {
		return StoredCard{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		learnerID, card.CardID, string(state),
		nullFloat(card.Stability), nullFloat(card.Difficulty),
		card.Reps, card.Lapses,
		formatTime(card.Due), nullTime(card.LastReview),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return StoredCard{}, fmt.Errorf("%w: learner %q card %d", ErrDuplicateCard, learnerID, card.CardID)
		}
		return StoredCard{}, fmt.Errorf("insert card: %w", err)
	}

	return StoredCard{
		Card:      card,
		LearnerID: learnerID,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetCard fetches one card row.
func (s *SQLiteStore) GetCard(ctx context.Context, learnerID string, cardID int64) (StoredCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE learner_id = ? AND card_id = ?
	`, learnerID, cardID)

	sc, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredCard{}, fmt.Errorf("%w: learner %q card %d", ErrNotFound, learnerID, cardID)
		}
		return StoredCard{}, fmt.Errorf("scan card: %w", err)
	}
	return sc, nil
}

// SaveCard replaces the card's scheduling state if the revision still
// matches, bumping it by one. Returns ErrRevisionConflict when another
// commit won the race, ErrNotFound when the row is gone.
func (s *SQLiteStore) SaveCard(ctx context.Context, sc StoredCard) (StoredCard, error) {
	if err := sc.Card.Validate(); err != nil {
		return StoredCard{}, err
	}

	now := time.Now().UTC()
	state, err := sc.State.MarshalText()
	if err != nil {
		return StoredCard{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET state = ?, stability = ?, difficulty = ?, reps = ?, lapses = ?,
		    due = ?, last_review = ?, revision = revision + 1, updated_at = ?
		WHERE learner_id = ? AND card_id = ? AND revision = ?
	`,
		string(state),
		nullFloat(sc.Stability), nullFloat(sc.Difficulty),
		sc.Reps, sc.Lapses,
		formatTime(sc.Due), nullTime(sc.LastReview),
		formatTime(now),
		sc.LearnerID, sc.CardID, sc.Revision,
	)
	if err != nil {
		return StoredCard{}, fmt.Errorf("update card: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return StoredCard{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Missing row and stale revision look the same to the UPDATE.
		if _, err := s.GetCard(ctx, sc.LearnerID, sc.CardID); err != nil {
			return StoredCard{}, err
		}
		return StoredCard{}, fmt.Errorf("%w: learner %q card %d at revision %d",
			ErrRevisionConflict, sc.LearnerID, sc.CardID, sc.Revision)
	}

	sc.Revision++
	sc.UpdatedAt = now
	return sc, nil
}

// DueCards lists cards due at or before now, oldest due first.
func (s *SQLiteStore) DueCards(ctx context.Context, learnerID string, now time.Time, limit int) ([]StoredCard, error) {
	q := `SELECT ` + cardColumns + ` FROM cards WHERE learner_id = ? AND due <= ? ORDER BY due ASC`
	args := []any{learnerID, formatTime(now.UTC())}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query due cards: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// ListCards lists all of the learner's cards ordered by card ID.
func (s *SQLiteStore) ListCards(ctx context.Context, learnerID string) ([]StoredCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE learner_id = ? ORDER BY card_id ASC
	`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// DeleteCard removes a card row. Review logs are kept for history.
func (s *SQLiteStore) DeleteCard(ctx context.Context, learnerID string, cardID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cards WHERE learner_id = ? AND card_id = ?
	`, learnerID, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: learner %q card %d", ErrNotFound, learnerID, cardID)
	}
	return nil
}

// --- review logs ---

// AppendReview stores one log entry under a fresh ULID.
func (s *SQLiteStore) AppendReview(ctx context.Context, learnerID string, entry verso.ReviewLogEntry) (string, error) {
	rating, err := entry.Rating.MarshalText()
	if err != nil {
		return "", err
	}
	priorState, err := entry.PriorState.MarshalText()
	if err != nil {
		return "", err
	}

	id := ulid.Make().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_logs (
			id, learner_id, card_id, rating, prior_state,
			elapsed_days, scheduled_days, stability, difficulty,
			reviewed_at, review_duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, learnerID, entry.CardID, string(rating), string(priorState),
		entry.ElapsedDays, entry.ScheduledDays, entry.Stability, entry.Difficulty,
		formatTime(entry.ReviewedAt), nullInt(entry.ReviewDuration),
	)
	if err != nil {
		return "", fmt.Errorf("insert review log: %w", err)
	}
	return id, nil
}

// ReviewsForCard returns the card's reviews in review-time order.
func (s *SQLiteStore) ReviewsForCard(ctx context.Context, learnerID string, cardID int64) ([]verso.ReviewLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_id, rating, prior_state, elapsed_days, scheduled_days,
		       stability, difficulty, reviewed_at, review_duration_ms
		FROM review_logs
		WHERE learner_id = ? AND card_id = ?
		ORDER BY reviewed_at ASC, id ASC
	`, learnerID, cardID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// AllReviews returns every review for the learner in review-time order.
func (s *SQLiteStore) AllReviews(ctx context.Context, learnerID string) ([]verso.ReviewLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_id, rating, prior_state, elapsed_days, scheduled_days,
		       stability, difficulty, reviewed_at, review_duration_ms
		FROM review_logs
		WHERE learner_id = ?
		ORDER BY reviewed_at ASC, id ASC
	`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// --- profiles ---

// GetProfile fetches the learner's stored profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, learnerID string) (verso.ParameterProfile, error) {
	var (
		weightsJSON string
		profile     verso.ParameterProfile
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT weights, target_retention, maximum_interval
		FROM profiles WHERE learner_id = ?
	`, learnerID).Scan(&weightsJSON, &profile.TargetRetention, &profile.MaximumInterval)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return verso.ParameterProfile{}, fmt.Errorf("%w: profile for learner %q", ErrNotFound, learnerID)
		}
		return verso.ParameterProfile{}, fmt.Errorf("query profile: %w", err)
	}

	if err := json.Unmarshal([]byte(weightsJSON), &profile.Weights); err != nil {
		return verso.ParameterProfile{}, fmt.Errorf("parse stored weights: %w", err)
	}
	return profile, nil
}

// PutProfile validates and upserts the learner's profile.
func (s *SQLiteStore) PutProfile(ctx context.Context, learnerID string, profile verso.ParameterProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	weightsJSON, err := json.Marshal(profile.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (learner_id, weights, target_retention, maximum_interval, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (learner_id) DO UPDATE SET
			weights = excluded.weights,
			target_retention = excluded.target_retention,
			maximum_interval = excluded.maximum_interval,
			updated_at = excluded.updated_at
	`, learnerID, string(weightsJSON), profile.TargetRetention, profile.MaximumInterval,
		formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// --- scanning helpers ---

func collectCards(rows *sql.Rows) ([]StoredCard, error) {
	var cards []StoredCard
	for rows.Next() {
		sc, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}

func scanCard(scanner interface{ Scan(...any) error }) (StoredCard, error) {
	var (
		sc         StoredCard
		state      string
		stability  sql.NullFloat64
		difficulty sql.NullFloat64
		due        string
		lastReview sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&sc.LearnerID, &sc.CardID, &state,
		&stability, &difficulty,
		&sc.Reps, &sc.Lapses,
		&due, &lastReview,
		&sc.Revision, &createdAt, &updatedAt,
	)
	if err != nil {
		return StoredCard{}, err
	}

	if err := sc.State.UnmarshalText([]byte(state)); err != nil {
		return StoredCard{}, err
	}
	if stability.Valid {
		v := stability.Float64
		sc.Stability = &v
	}
	if difficulty.Valid {
		v := difficulty.Float64
		sc.Difficulty = &v
	}
	if sc.Due, err = parseTime(due); err != nil {
		return StoredCard{}, err
	}
	if lastReview.Valid {
		t, err := parseTime(lastReview.String)
		if err != nil {
			return StoredCard{}, err
		}
		sc.LastReview = &t
	}
	if sc.CreatedAt, err = parseTime(createdAt); err != nil {
		return StoredCard{}, err
	}
	if sc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return StoredCard{}, err
	}

	return sc, nil
}

func collectReviews(rows *sql.Rows) ([]verso.ReviewLogEntry, error) {
	var entries []verso.ReviewLogEntry
	for rows.Next() {
		var (
			e          verso.ReviewLogEntry
			rating     string
			priorState string
			reviewedAt string
			duration   sql.NullInt64
		)
		err := rows.Scan(
			&e.CardID, &rating, &priorState,
			&e.ElapsedDays, &e.ScheduledDays,
			&e.Stability, &e.Difficulty,
			&reviewedAt, &duration,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if err := e.Rating.UnmarshalText([]byte(rating)); err != nil {
			return nil, err
		}
		if err := e.PriorState.UnmarshalText([]byte(priorState)); err != nil {
			return nil, err
		}
		if e.ReviewedAt, err = parseTime(reviewedAt); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := int(duration.Int64)
			e.ReviewDuration = &d
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return entries, nil
}

// sqlTimeFormat keeps a fixed fractional width so stored timestamps compare
// correctly as strings (RFC3339Nano trims trailing zeros, which breaks
// lexicographic ordering).
const sqlTimeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqlTimeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

// isUniqueViolation reports whether err is SQLite's unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
