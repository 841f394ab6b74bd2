package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cards",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
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

	cards, err := st.ListCards(context.Background(), cfg.Learner.ID)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), cards)
	}
	printCardTable(cmd, sched, cards, time.Now())
	return nil
}
