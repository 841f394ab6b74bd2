package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/verso-study/verso"
)

var previewCmd = &cobra.Command{
	Use:   "preview <card-id>",
	Short: "Show the outcome of each possible rating without committing",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
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
	profile, err := loadProfile(ctx, st, cfg)
	if err != nil {
		return err
	}

	cands, err := sched.ScheduleCandidates(sc.Card, profile, time.Now())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), cands)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RATING\tSTATE\tDUE\tINTERVAL\tSTABILITY")
	for _, r := range verso.Ratings {
		out, err := cands.Outcome(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fd\n",
			r, out.Card.State, out.Card.Due.Local().Format("2006-01-02 15:04"),
			formatInterval(out.Card.Due.Sub(out.Entry.ReviewedAt)), out.Entry.Stability)
	}
	return w.Flush()
}

func formatInterval(d time.Duration) string {
	if d >= 24*time.Hour {
		return fmt.Sprintf("%.0fd", d.Hours()/24)
	}
	return d.Round(time.Minute).String()
}
