package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/verso-study/verso"
)

var (
	// ErrEmptyLogs is returned when no review logs are provided.
	ErrEmptyLogs = errors.New("optimizer: no review logs provided")

	// ErrInsufficientData is returned when cross-day reviews are fewer than MiniBatchSize.
	ErrInsufficientData = errors.New("optimizer: insufficient cross-day reviews for optimization")
)

// OptimizerConfig configures the training process.
// Zero values are replaced with sensible defaults.
type OptimizerConfig struct {
	Epochs        int     `json:"epochs"`          // default 5
	MiniBatchSize int     `json:"mini_batch_size"` // default 512
	LearningRate  float64 `json:"learning_rate"`   // default 0.04
	MaxSeqLen     int     `json:"max_seq_len"`     // default 64
}

// Optimizer trains scheduling weights from review logs using mini-batch
// gradient descent with Adam and a cosine annealing learning rate.
type Optimizer struct {
	epochs        int
	miniBatchSize int
	learningRate  float64
	maxSeqLen     int
}

// NewOptimizer creates an Optimizer with the given config.
// Zero-valued fields receive defaults: Epochs=5, MiniBatchSize=512,
// LearningRate=0.04, MaxSeqLen=64.
func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	o := &Optimizer{
		epochs:        cfg.Epochs,
		miniBatchSize: cfg.MiniBatchSize,
		learningRate:  cfg.LearningRate,
		maxSeqLen:     cfg.MaxSeqLen,
	}
	if o.epochs == 0 {
		o.epochs = 5
	}
	if o.miniBatchSize == 0 {
		o.miniBatchSize = 512
	}
	if o.learningRate == 0 {
		o.learningRate = 0.04
	}
	if o.maxSeqLen == 0 {
		o.maxSeqLen = 64
	}
	return o
}

// ComputeOptimalWeights trains scheduling weights from review logs.
// It starts from verso.DefaultWeights and uses mini-batch gradient descent
// (numerical central differences) with the Adam optimizer and cosine
// annealing learning rate.
//
// Returns ErrEmptyLogs if logs is empty, or ErrInsufficientData (along with
// verso.DefaultWeights) if cross-day reviews are fewer than MiniBatchSize.
// The context can be used to cancel long-running optimization.
func (o *Optimizer) ComputeOptimalWeights(ctx context.Context, logs []verso.ReviewLogEntry) (verso.Weights, error) {
	if len(logs) == 0 {
		return verso.Weights{}, ErrEmptyLogs
	}

	data := formatRevlogs(logs)

	// Truncate each card's reviews to maxSeqLen.
	for cardID, reviews := range data {
		if len(reviews) > o.maxSeqLen {
			data[cardID] = reviews[:o.maxSeqLen]
		}
	}

	numReviews := countCrossDayReviews(data)
	if numReviews < o.miniBatchSize {
		return verso.DefaultWeights, ErrInsufficientData
	}

	w := verso.DefaultWeights
	tMax := int(math.Ceil(float64(numReviews)/float64(o.miniBatchSize))) * o.epochs
	adam := NewAdam(o.learningRate)
	ca := NewCosineAnnealing(o.learningRate, tMax)
	rng := rand.New(rand.NewSource(42))

	// Sorted card IDs for deterministic shuffle.
	cardIDs := make([]int64, 0, len(data))
	for id := range data {
		cardIDs = append(cardIDs, id)
	}
	sort.Slice(cardIDs, func(i, j int) bool { return cardIDs[i] < cardIDs[j] })

	bestWeights := w
	bestLoss := math.Inf(1)

	for epoch := 0; epoch < o.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return bestWeights, err
		}

		rng.Shuffle(len(cardIDs), func(i, j int) {
			cardIDs[i], cardIDs[j] = cardIDs[j], cardIDs[i]
		})

		batchData := make(map[int64][]review)
		crossDayCount := 0

		for _, cardID := range cardIDs {
			reviews := data[cardID]
			batchData[cardID] = reviews

			for _, r := range reviews {
				if r.elapsedDays >= 1.0 {
					crossDayCount++
				}
			}

			if crossDayCount >= o.miniBatchSize {
				grad := numericalGradient(w, batchData)
				adam.SetLR(ca.LR())
				w = clampWeights(adam.Update(w, grad))
				ca.Step()

				batchData = make(map[int64][]review)
				crossDayCount = 0
			}
		}

		// Handle remaining reviews at end of epoch.
		if crossDayCount > 0 {
			grad := numericalGradient(w, batchData)
			adam.SetLR(ca.LR())
			w = clampWeights(adam.Update(w, grad))
			ca.Step()
		}

		// Track best weights by epoch loss.
		epochLoss := computeBatchLoss(w, data)
		if epochLoss < bestLoss {
			bestLoss = epochLoss
			bestWeights = w
		}
	}

	return bestWeights, nil
}

// ComputeBatchLoss computes the average BCE loss over all cross-day reviews.
// This is a convenience wrapper that preprocesses the review logs.
func (o *Optimizer) ComputeBatchLoss(w verso.Weights, logs []verso.ReviewLogEntry) float64 {
	data := formatRevlogs(logs)
	return computeBatchLoss(w, data)
}

// clampWeights constrains each weight to [verso.LowerBounds, verso.UpperBounds].
func clampWeights(w verso.Weights) verso.Weights {
	for i := range w {
		if w[i] < verso.LowerBounds[i] {
			w[i] = verso.LowerBounds[i]
		}
		if w[i] > verso.UpperBounds[i] {
			w[i] = verso.UpperBounds[i]
		}
	}
	return w
}
