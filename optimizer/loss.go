package optimizer

import (
	"math"

	"github.com/verso-study/verso"
)

const bceClamp = 1e-7

// bceLoss computes the binary cross-entropy loss: -[y*ln(p) + (1-y)*ln(1-p)].
// rPred is clamped to [bceClamp, 1-bceClamp] to avoid log(0).
func bceLoss(rPred, y float64) float64 {
	p := math.Max(bceClamp, math.Min(rPred, 1-bceClamp))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// computeBatchLoss computes the average BCE loss over all cross-day reviews.
// It replays each card's review history under a candidate weight vector and
// scores the retrievability predicted just before each review against the
// binary recall outcome. Returns 0 if there are no cross-day reviews.
//
// Candidate weights are clamped to bounds before replay: numerical gradient
// probes step slightly past the box, and the clamp keeps those probes inside
// the profile's valid domain.
func computeBatchLoss(w verso.Weights, data map[int64][]review) float64 {
	s, err := verso.NewScheduler(verso.SchedulerConfig{})
	if err != nil {
		return 0
	}
	profile, err := verso.NewParameterProfile(clampWeights(w), 0.9, 36500)
	if err != nil {
		return 0
	}

	var totalLoss float64
	var count int

	for cardID, reviews := range data {
		card := verso.NewCard(cardID)
		card.Due = reviews[0].reviewTime

		for _, rev := range reviews {
			// Retrievability BEFORE this review is the model's prediction.
			rPred := s.Retrievability(card, rev.reviewTime)

			// Only cross-day reviews contribute to loss.
			if card.LastReview != nil && rev.elapsedDays >= 1.0 {
				totalLoss += bceLoss(rPred, rev.label)
				count++
			}

			next, _, err := s.ReviewCard(card, profile, rev.rating, rev.reviewTime)
			if err != nil {
				return math.Inf(1)
			}
			card = next
		}
	}

	if count == 0 {
		return 0
	}
	return totalLoss / float64(count)
}

const gradEps = 1e-5

// numericalGradient computes the gradient of the batch loss w.r.t. each
// weight using central differences: dL/dw[i] ≈ (L(w[i]+ε) - L(w[i]-ε)) / (2ε).
func numericalGradient(w verso.Weights, data map[int64][]review) verso.Weights {
	var grad verso.Weights
	for i := range w {
		wPlus := w
		wPlus[i] += gradEps
		wMinus := w
		wMinus[i] -= gradEps

		lPlus := computeBatchLoss(wPlus, data)
		lMinus := computeBatchLoss(wMinus, data)

		grad[i] = (lPlus - lMinus) / (2 * gradEps)
	}
	return grad
}
