package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verso-study/verso"
	"github.com/verso-study/verso/internal/config"
	"github.com/verso-study/verso/store"
)

var (
	configPathOverride string
	dbPathOverride     string
	learnerOverride    string
	jsonOutput         bool
)

var rootCmd = &cobra.Command{
	Use:           "verso",
	Short:         "Spaced repetition scheduling for the terminal",
	Long:          "Verso schedules flashcard reviews with a trainable memory model. Cards, review logs, and per-learner parameters live in a local SQLite database.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathOverride, "config", "",
		"Config file path (overrides VERSO_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and VERSO_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&learnerOverride, "learner", "",
		"Learner ID (overrides config and VERSO_LEARNER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(optimizeCmd)
}

// loadConfig resolves configuration, applies CLI flag overrides, and
// installs the global logger.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPathOverride != "" {
		cfg, err = config.LoadFromFile(configPathOverride)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if dbPathOverride != "" {
		cfg.Database.Path = dbPathOverride
	}
	if learnerOverride != "" {
		cfg.Learner.ID = learnerOverride
	}

	initLogger(cfg)
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore opens the SQLite store at the configured path, running
// migrations as needed.
func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	slog.Debug("store opened", "path", cfg.Database.Path)
	return st, nil
}

// loadProfile fetches the learner's stored parameters, falling back to the
// defaults for learners who never trained, then applies config overrides.
func loadProfile(ctx context.Context, st store.Store, cfg *config.Config) (verso.ParameterProfile, error) {
	profile, err := st.GetProfile(ctx, cfg.Learner.ID)
	if errors.Is(err, store.ErrNotFound) {
		profile = verso.DefaultProfile()
	} else if err != nil {
		return verso.ParameterProfile{}, fmt.Errorf("load profile: %w", err)
	}

	profile = cfg.ApplyProfileOverrides(profile)
	if err := profile.Validate(); err != nil {
		return verso.ParameterProfile{}, err
	}
	return profile, nil
}

func newScheduler(cfg *config.Config) (*verso.Scheduler, error) {
	return verso.NewScheduler(cfg.EngineConfig())
}

// printJSON marshals v to indented JSON and writes it to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseRating converts CLI input like "good" or "3" to a Rating.
func parseRating(s string) (verso.Rating, error) {
	for _, r := range verso.Ratings {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	switch s {
	case "1", "2", "3", "4":
		return verso.Rating(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown rating %q (want again, hard, good, or easy)", s)
}
