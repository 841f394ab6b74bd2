package optimizer

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/verso-study/verso"
)

// generateSyntheticLogs creates review logs by simulating with the default
// profile. Cards are reviewed at their scheduled due time with stochastic
// ratings based on predicted retrievability.
func generateSyntheticLogs(numCards, reviewsPerCard int, seed int64) []verso.ReviewLogEntry {
	rng := rand.New(rand.NewSource(seed))
	s, _ := verso.NewScheduler(verso.SchedulerConfig{})
	profile := verso.DefaultProfile()

	baseTime := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var logs []verso.ReviewLogEntry

	for i := 0; i < numCards; i++ {
		cardID := int64(i + 1)
		card := verso.NewCard(cardID)
		card.Due = baseTime
		now := baseTime

		for j := 0; j < reviewsPerCard; j++ {
			r := s.Retrievability(card, now)
			var rating verso.Rating
			if card.State != verso.New && rng.Float64() > r {
				rating = verso.Again
			} else {
				p := rng.Float64()
				switch {
				case p < 0.05:
					rating = verso.Hard
				case p < 0.85:
					rating = verso.Good
				default:
					rating = verso.Easy
				}
			}

			logs = append(logs, verso.ReviewLogEntry{
				CardID:     cardID,
				Rating:     rating,
				ReviewedAt: now,
			})

			next, _, err := s.ReviewCard(card, profile, rating, now)
			if err != nil {
				panic(err)
			}
			card = next
			now = card.Due
		}
	}

	return logs
}

// --- NewOptimizer ---

func TestNewOptimizerDefaults(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	if o.epochs != 5 {
		t.Errorf("epochs = %d, want 5", o.epochs)
	}
	if o.miniBatchSize != 512 {
		t.Errorf("miniBatchSize = %d, want 512", o.miniBatchSize)
	}
	if o.learningRate != 0.04 {
		t.Errorf("learningRate = %f, want 0.04", o.learningRate)
	}
	if o.maxSeqLen != 64 {
		t.Errorf("maxSeqLen = %d, want 64", o.maxSeqLen)
	}
}

func TestNewOptimizerCustom(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{
		Epochs:        10,
		MiniBatchSize: 256,
		LearningRate:  0.01,
		MaxSeqLen:     32,
	})
	if o.epochs != 10 {
		t.Errorf("epochs = %d, want 10", o.epochs)
	}
	if o.miniBatchSize != 256 {
		t.Errorf("miniBatchSize = %d, want 256", o.miniBatchSize)
	}
	if o.learningRate != 0.01 {
		t.Errorf("learningRate = %f, want 0.01", o.learningRate)
	}
	if o.maxSeqLen != 32 {
		t.Errorf("maxSeqLen = %d, want 32", o.maxSeqLen)
	}
}

// --- ComputeOptimalWeights ---

func TestOptimizerEmptyLogs(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	_, err := o.ComputeOptimalWeights(context.Background(), nil)
	if !errors.Is(err, ErrEmptyLogs) {
		t.Fatalf("err = %v, want ErrEmptyLogs", err)
	}
}

func TestOptimizerInsufficientData(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	// Only 1 cross-day review, well below MiniBatchSize=512.
	logs := []verso.ReviewLogEntry{
		{CardID: 1, Rating: verso.Good, ReviewedAt: t0},
		{CardID: 1, Rating: verso.Good, ReviewedAt: t0.Add(10 * time.Minute)},
		{CardID: 1, Rating: verso.Good, ReviewedAt: t0.Add(3 * 24 * time.Hour)},
	}
	w, err := o.ComputeOptimalWeights(context.Background(), logs)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if w != verso.DefaultWeights {
		t.Error("expected DefaultWeights for insufficient data")
	}
}

func TestOptimizerLossDecreases(t *testing.T) {
	logs := generateSyntheticLogs(300, 10, 42)
	o := NewOptimizer(OptimizerConfig{Epochs: 3})

	data := formatRevlogs(logs)
	initialLoss := computeBatchLoss(verso.DefaultWeights, data)

	optimized, err := o.ComputeOptimalWeights(context.Background(), logs)
	if err != nil {
		t.Fatalf("ComputeOptimalWeights: %v", err)
	}

	optimizedLoss := computeBatchLoss(optimized, data)
	// Optimized loss should not be significantly worse than initial.
	if optimizedLoss > initialLoss*1.01 {
		t.Errorf("optimized loss %f > initial loss %f * 1.01", optimizedLoss, initialLoss)
	}
}

func TestOptimizerWeightsInBounds(t *testing.T) {
	logs := generateSyntheticLogs(300, 10, 42)
	o := NewOptimizer(OptimizerConfig{Epochs: 2})

	optimized, err := o.ComputeOptimalWeights(context.Background(), logs)
	if err != nil {
		t.Fatalf("ComputeOptimalWeights: %v", err)
	}

	if err := verso.ValidateWeights(optimized); err != nil {
		t.Errorf("optimized weights failed validation: %v", err)
	}
}

func TestOptimizerContextCancel(t *testing.T) {
	logs := generateSyntheticLogs(300, 10, 42)
	o := NewOptimizer(OptimizerConfig{Epochs: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := o.ComputeOptimalWeights(ctx, logs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestOptimizerMaxSeqLen(t *testing.T) {
	// Many reviews per card, truncated to MaxSeqLen=5: each card keeps at
	// most 4 cross-day reviews, still enough for a 64-review mini-batch.
	logs := generateSyntheticLogs(500, 10, 42)
	o := NewOptimizer(OptimizerConfig{Epochs: 1, MaxSeqLen: 5, MiniBatchSize: 64})

	_, err := o.ComputeOptimalWeights(context.Background(), logs)
	if err != nil {
		t.Fatalf("ComputeOptimalWeights with MaxSeqLen=5: %v", err)
	}
}

// --- ComputeBatchLoss (public) ---

func TestComputeBatchLossPublic(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	logs := []verso.ReviewLogEntry{
		{CardID: 1, Rating: verso.Good, ReviewedAt: t0},
		{CardID: 1, Rating: verso.Good, ReviewedAt: t0.Add(10 * time.Minute)},
		{CardID: 1, Rating: verso.Good, ReviewedAt: t0.Add(3 * 24 * time.Hour)},
	}
	loss := o.ComputeBatchLoss(verso.DefaultWeights, logs)
	if loss <= 0 {
		t.Errorf("ComputeBatchLoss = %f, want > 0", loss)
	}
}

func TestComputeBatchLossPublicEmpty(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	loss := o.ComputeBatchLoss(verso.DefaultWeights, nil)
	if loss != 0 {
		t.Errorf("ComputeBatchLoss(nil) = %f, want 0", loss)
	}
}

// --- clampWeights ---

func TestClampWeights(t *testing.T) {
	// Weights well below lower bounds should be clamped up.
	var w verso.Weights // all zeros
	clamped := clampWeights(w)
	for i := range clamped {
		if clamped[i] != verso.LowerBounds[i] {
			t.Errorf("clamped[%d] = %f, want %f", i, clamped[i], verso.LowerBounds[i])
		}
	}

	// Weights above upper bounds should be clamped down.
	var high verso.Weights
	for i := range high {
		high[i] = 999.0
	}
	clamped = clampWeights(high)
	for i := range clamped {
		if clamped[i] != verso.UpperBounds[i] {
			t.Errorf("clamped[%d] = %f, want %f", i, clamped[i], verso.UpperBounds[i])
		}
	}
}
