package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/verso-study/verso"
	"github.com/verso-study/verso/store"
)

var dueLimit int

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List cards due for review",
	Args:  cobra.NoArgs,
	RunE:  runDue,
}

func init() {
	dueCmd.Flags().IntVar(&dueLimit, "limit", 0, "Maximum cards to list (0 = all)")
}

func runDue(cmd *cobra.Command, args []string) error {
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

	now := time.Now()
	cards, err := st.DueCards(context.Background(), cfg.Learner.ID, now, dueLimit)
	if err != nil {
		return fmt.Errorf("list due cards: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), cards)
	}
	printCardTable(cmd, sched, cards, now)
	return nil
}

// printCardTable renders cards as an aligned table with per-card recall
// probability at the given instant.
func printCardTable(cmd *cobra.Command, sched *verso.Scheduler, cards []store.StoredCard, now time.Time) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tDUE\tREPS\tLAPSES\tRECALL")
	for _, sc := range cards {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%.3f\n",
			sc.CardID, sc.State, sc.Due.Local().Format("2006-01-02 15:04"),
			sc.Reps, sc.Lapses, sched.Retrievability(sc.Card, now))
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d card(s)\n", len(cards))
}
