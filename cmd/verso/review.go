package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/verso-study/verso"
	"github.com/verso-study/verso/store"
)

var reviewDurationMs int

var reviewCmd = &cobra.Command{
	Use:   "review <card-id> <rating>",
	Short: "Record a review and reschedule the card",
	Long:  "Record the learner's rating (again, hard, good, easy, or 1-4) for a card, persist the updated scheduling state, and append a review log entry.",
	Args:  cobra.ExactArgs(2),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().IntVar(&reviewDurationMs, "duration", 0,
		"Review duration in milliseconds (recorded for retention training)")
}

func runReview(cmd *cobra.Command, args []string) error {
	cardID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid card id %q", args[0])
	}
	rating, err := parseRating(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sched, err := newScheduler(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	profile, err := loadProfile(ctx, st, cfg)
	if err != nil {
		return err
	}

	saved, entry, err := commitReview(ctx, st, sched, profile, cfg.Learner.ID, cardID, rating)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"card":  saved,
			"entry": entry,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "card %d rated %s: %s, due %s\n",
		saved.CardID, rating, saved.State, saved.Due.Local().Format(time.RFC1123))
	return nil
}

// commitReview runs the schedule, commit, save, and log steps for one
// review. A concurrent commit surfaces as a revision conflict; the whole
// sequence is retried once from a fresh read before giving up.
func commitReview(ctx context.Context, st store.Store, sched *verso.Scheduler,
	profile verso.ParameterProfile, learnerID string, cardID int64, rating verso.Rating,
) (store.StoredCard, verso.ReviewLogEntry, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sc, err := st.GetCard(ctx, learnerID, cardID)
		if err != nil {
			return store.StoredCard{}, verso.ReviewLogEntry{}, fmt.Errorf("get card %d: %w", cardID, err)
		}

		cands, err := sched.ScheduleCandidates(sc.Card, profile, time.Now())
		if err != nil {
			return store.StoredCard{}, verso.ReviewLogEntry{}, err
		}
		updated, entry, err := sched.Commit(cands, rating)
		if err != nil {
			return store.StoredCard{}, verso.ReviewLogEntry{}, err
		}
		if reviewDurationMs > 0 {
			d := reviewDurationMs
			entry.ReviewDuration = &d
		}

		sc.Card = updated
		saved, err := st.SaveCard(ctx, sc)
		if errors.Is(err, store.ErrRevisionConflict) {
			slog.Warn("revision conflict, retrying", "card_id", cardID, "attempt", attempt+1)
			lastErr = err
			continue
		}
		if err != nil {
			return store.StoredCard{}, verso.ReviewLogEntry{}, fmt.Errorf("save card: %w", err)
		}

		if _, err := st.AppendReview(ctx, learnerID, entry); err != nil {
			return store.StoredCard{}, verso.ReviewLogEntry{}, fmt.Errorf("append review log: %w", err)
		}
		return saved, entry, nil
	}
	return store.StoredCard{}, verso.ReviewLogEntry{}, lastErr
}
