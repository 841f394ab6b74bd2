package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <card-id>",
	Short: "Show one card and its review history",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cardID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid card id %q", args[0])
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
	sc, err := st.GetCard(ctx, cfg.Learner.ID, cardID)
	if err != nil {
		return fmt.Errorf("get card %d: %w", cardID, err)
	}
	reviews, err := st.ReviewsForCard(ctx, cfg.Learner.ID, cardID)
	if err != nil {
		return fmt.Errorf("load reviews: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"card":    sc,
			"reviews": reviews,
		})
	}

	out := cmd.OutOrStdout()
	now := time.Now()
	fmt.Fprintf(out, "card %d (%s)\n", sc.CardID, sc.State)
	fmt.Fprintf(out, "  due:      %s\n", sc.Due.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "  reps:     %d, lapses: %d\n", sc.Reps, sc.Lapses)
	if sc.Stability != nil && sc.Difficulty != nil {
		fmt.Fprintf(out, "  memory:   stability %.2fd, difficulty %.2f\n", *sc.Stability, *sc.Difficulty)
	}
	fmt.Fprintf(out, "  recall:   %.3f\n", sched.Retrievability(sc.Card, now))
	fmt.Fprintf(out, "  reviews:  %d\n", len(reviews))
	for _, r := range reviews {
		fmt.Fprintf(out, "    %s  %-5s  elapsed %.1fd  stability %.2fd\n",
			r.ReviewedAt.Local().Format("2006-01-02 15:04"), r.Rating, r.ElapsedDays, r.Stability)
	}
	return nil
}
