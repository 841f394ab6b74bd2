package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verso-study/verso"
	"github.com/verso-study/verso/optimizer"
)

var optimizeRetention bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Train scheduling weights from the review history",
	Long:  "Fit the learner's scheduling weights to their accumulated review logs and store the result in their profile. With --retention, also search for the review cost minimizing retention target.",
	Args:  cobra.NoArgs,
	RunE:  runOptimize,
}

func init() {
	optimizeCmd.Flags().BoolVar(&optimizeRetention, "retention", false,
		"Also compute the optimal retention target (requires review durations)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logs, err := st.AllReviews(ctx, cfg.Learner.ID)
	if err != nil {
		return fmt.Errorf("load review logs: %w", err)
	}
	slog.Info("review logs loaded", "learner", cfg.Learner.ID, "count", len(logs))

	opt := optimizer.NewOptimizer(optimizer.OptimizerConfig{
		Epochs:        cfg.Optimizer.Epochs,
		MiniBatchSize: cfg.Optimizer.MiniBatchSize,
		LearningRate:  cfg.Optimizer.LearningRate,
		MaxSeqLen:     cfg.Optimizer.MaxSeqLen,
	})

	weights, err := trainWeights(ctx, opt, logs)
	if err != nil {
		return fmt.Errorf("optimize weights: %w", err)
	}

	profile, err := loadProfile(ctx, st, cfg)
	if err != nil {
		return err
	}
	profile.Weights = weights

	if optimizeRetention {
		retention, err := opt.ComputeOptimalRetention(ctx, weights, logs)
		if err != nil {
			return fmt.Errorf("optimize retention: %w", err)
		}
		profile.TargetRetention = retention
	}

	if err := st.PutProfile(ctx, cfg.Learner.ID, profile); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	slog.Info("profile updated", "learner", cfg.Learner.ID,
		"target_retention", profile.TargetRetention)

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), profile)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "weights: %v\n", profile.Weights)
	fmt.Fprintf(cmd.OutOrStdout(), "target retention: %.2f\n", profile.TargetRetention)
	return nil
}

// trainWeights fits weights to the review history. Too little history to
// train on is not an error for this command: a fresh or lightly used
// database keeps the default weights with a warning.
func trainWeights(ctx context.Context, opt *optimizer.Optimizer, logs []verso.ReviewLogEntry) (verso.Weights, error) {
	weights, err := opt.ComputeOptimalWeights(ctx, logs)
	if errors.Is(err, optimizer.ErrEmptyLogs) || errors.Is(err, optimizer.ErrInsufficientData) {
		slog.Warn("not enough review history to train, keeping default weights",
			"reviews", len(logs))
		return verso.DefaultWeights, nil
	}
	if err != nil {
		return verso.Weights{}, err
	}
	return weights, nil
}
