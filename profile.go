package verso

import (
	"fmt"
	"math"
)

// Weights is the model's tunable coefficient vector. The index layout is
// part of the algorithm's contract; use the W* constants rather than raw
// indices.
type Weights [13]float64

// Named indices into Weights. Each formula in memory.go names the slots it
// reads, so an index-out-of-range is impossible by construction.
const (
	WSeedStability   = iota // stability after the first review, in days
	WHardPenalty            // recall growth multiplier for Hard (< 1)
	WSeedDifficulty         // difficulty after the first review
	WEasyBonus              // recall growth multiplier for Easy (> 1)
	WDifficultyDrift        // constant difficulty drift per review
	WDifficultyStep         // difficulty change per rating step from Good
	WMeanReversion          // pull toward seed difficulty per review
	WStabilityPower         // stability saturation exponent (< 0)
	WRetrievalBoost         // scale on the (1-R) recall boost
	WLapseScale             // post-lapse stability scale
	WLapseDifficulty        // post-lapse difficulty exponent
	WLapseStability         // post-lapse stability exponent
	WLapseRetrieval         // scale on the (1-R) lapse term
)

// DefaultWeights are the stock weights shipped with the engine, tuned for
// a 0.9 target retention. Per-learner weights come from the optimizer.
var DefaultWeights = Weights{
	1.14,  // w0  seed stability
	0.82,  // w1  hard penalty
	5.08,  // w2  seed difficulty
	1.31,  // w3  easy bonus
	0.025, // w4  difficulty drift
	0.62,  // w5  difficulty rating step
	0.06,  // w6  mean reversion rate
	-0.18, // w7  stability saturation exponent
	1.52,  // w8  retrieval boost scale
	1.86,  // w9  lapse scale
	0.16,  // w10 lapse difficulty exponent
	0.37,  // w11 lapse stability exponent
	0.63,  // w12 lapse retrieval scale
}

// LowerBounds defines the minimum allowed value for each weight.
var LowerBounds = Weights{
	0.1, 0.1, 1.0, 1.0,
	-1.0, 0.0, 0.0, -1.0,
	0.01, 0.01, 0.0, 0.01,
	0.0,
}

// UpperBounds defines the maximum allowed value for each weight.
var UpperBounds = Weights{
	100.0, 1.0, 10.0, 5.0,
	1.0, 2.0, 1.0, 0.0,
	5.0, 10.0, 2.0, 2.0,
	3.0,
}

// ValidateWeights checks that every weight is finite and within
// [LowerBounds, UpperBounds].
func ValidateWeights(w Weights) error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: w[%d] is not finite", ErrInvalidWeights, i)
		}
		if v < LowerBounds[i] || v > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidWeights, i, v, LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// ParameterProfile holds one learner's scheduling parameters. The engine
// reads it; it never owns or mutates it.
type ParameterProfile struct {
	Weights         Weights `json:"weights" yaml:"weights"`
	TargetRetention float64 `json:"target_retention" yaml:"target_retention"` // recall probability at next review, in (0, 1)
	MaximumInterval int     `json:"maximum_interval" yaml:"maximum_interval"` // cap on scheduled gaps, in days
}

// DefaultProfile returns the stock profile: default weights, 0.9 target
// retention, 100-year interval cap.
func DefaultProfile() ParameterProfile {
	return ParameterProfile{
		Weights:         DefaultWeights,
		TargetRetention: 0.9,
		MaximumInterval: 36500,
	}
}

// NewParameterProfile builds a validated profile. Out-of-range values are
// rejected here, before any scheduling happens.
func NewParameterProfile(w Weights, targetRetention float64, maximumInterval int) (ParameterProfile, error) {
	p := ParameterProfile{
		Weights:         w,
		TargetRetention: targetRetention,
		MaximumInterval: maximumInterval,
	}
	if err := p.Validate(); err != nil {
		return ParameterProfile{}, err
	}
	return p, nil
}

// Validate checks weights, target retention, and interval cap.
func (p ParameterProfile) Validate() error {
	if err := ValidateWeights(p.Weights); err != nil {
		return err
	}
	if math.IsNaN(p.TargetRetention) || p.TargetRetention <= 0 || p.TargetRetention >= 1 {
		return fmt.Errorf("%w: target retention %f out of range (0, 1)", ErrInvalidProfile, p.TargetRetention)
	}
	if p.MaximumInterval < 1 {
		return fmt.Errorf("%w: maximum interval %d must be at least 1 day", ErrInvalidProfile, p.MaximumInterval)
	}
	return nil
}
