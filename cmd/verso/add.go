package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/verso-study/verso"
)

var addCount int

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add new cards",
	Long:  "Add one or more cards in the New state. New cards are due immediately.",
	Args:  cobra.NoArgs,
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().IntVar(&addCount, "count", 1, "Number of cards to add")
}

func runAdd(cmd *cobra.Command, args []string) error {
	if addCount < 1 {
		return fmt.Errorf("count must be at least 1, got %d", addCount)
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

	ctx := context.Background()
	created := make([]int64, 0, addCount)
	for i := 0; i < addCount; i++ {
		card := verso.NewCard(st.NextCardID())
		stored, err := st.CreateCard(ctx, cfg.Learner.ID, card)
		if err != nil {
			return fmt.Errorf("create card: %w", err)
		}
		created = append(created, stored.CardID)
	}
	slog.Debug("cards created", "learner", cfg.Learner.ID, "count", len(created))

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"card_ids": created})
	}
	for _, id := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "created card %d\n", id)
	}
	return nil
}
