package verso

import "math"

// minStability is the floor applied to every stability value. It keeps the
// forgetting curve's t/(9*S) term away from a division blow-up no matter
// how many lapses a card accumulates.
const minStability = 0.1

// model evaluates the memory formulas for one weight vector.
// All methods are pure; the scheduler owns state transitions.
type model struct {
	w Weights
}

// retrievability computes R(t, S) = (1 + t/(9*S))^-1.
// Domain: t >= 0, S > 0. R(0, S) = 1 for any S.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+elapsedDays/(9*stability), -1)
}

// seedStability returns the stability assigned on a card's first review,
// floored at minStability.
func (m *model) seedStability() float64 {
	return clampS(m.w[WSeedStability])
}

// seedDifficulty returns the difficulty assigned on a card's first review,
// clamped to [1, 10].
func (m *model) seedDifficulty() float64 {
	return clampD(m.w[WSeedDifficulty])
}

// nextInterval solves the forgetting curve for the elapsed time at which
// retrievability reaches the target retention:
//
//	I(S, r) = round(S * ln(r) / ln(0.9))
//
// clamped to [1, maxIvl] days. At r = 0.9 the interval equals the
// stability itself.
func (m *model) nextInterval(stability, targetRetention float64, maxIvl int) int {
	ivl := stability * math.Log(targetRetention) / math.Log(0.9)
	// Compare in float space before converting: a huge stability can push
	// ivl past the int range, where the conversion result is
	// implementation-defined and would slip under the min clamp.
	if ivl >= float64(maxIvl) {
		return maxIvl
	}
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	return days
}

// nextDifficulty computes the updated difficulty after a review:
//
//	D' = D + (w4 - (G-3)*w5) + w6*(D0 - D)
//
// clamped to [1, 10]. Harder ratings push difficulty up, easier ratings
// pull it down, and the w6 term mean-reverts toward the seed difficulty.
func (m *model) nextDifficulty(difficulty float64, r Rating) float64 {
	step := m.w[WDifficultyDrift] - (float64(r)-3)*m.w[WDifficultyStep]
	reversion := m.w[WMeanReversion] * (m.seedDifficulty() - difficulty)
	return clampD(difficulty + step + reversion)
}

// nextStability dispatches to nextRecallStability or nextForgetStability.
func (m *model) nextStability(d, s, r float64, rating Rating) float64 {
	if rating == Again {
		return m.nextForgetStability(d, s, r)
	}
	return m.nextRecallStability(d, s, r, rating)
}

// nextRecallStability computes stability after a successful recall
// (Hard/Good/Easy):
//
//	S' = S * (1 + (11-D) * S^w7 * (e^(w8*(1-R)) - 1) * hardPenalty * easyBonus)
//
// Easier cards grow stability faster (11-D), high-stability cards grow
// more slowly (S^w7 with w7 < 0), and a recall that was nearly forgotten
// earns a bigger boost (the 1-R exponent).
func (m *model) nextRecallStability(d, s, r float64, rating Rating) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = m.w[WHardPenalty]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = m.w[WEasyBonus]
	}
	growth := (11 - d) *
		math.Pow(s, m.w[WStabilityPower]) *
		(math.Exp(m.w[WRetrievalBoost]*(1-r)) - 1) *
		hardPenalty * easyBonus
	return clampS(s * (1 + growth))
}

// nextForgetStability computes the collapsed stability after an Again
// rating:
//
//	S' = w9 * D^(-w10) * ((S+1)^w11 - 1) * e^(w12*(1-R))
//
// The sublinear (S+1)^w11 term is what makes the collapse sharp: a card
// with months of stability drops back to a few days.
func (m *model) nextForgetStability(d, s, r float64) float64 {
	collapsed := m.w[WLapseScale] *
		math.Pow(d, -m.w[WLapseDifficulty]) *
		(math.Pow(s+1, m.w[WLapseStability]) - 1) *
		math.Exp(m.w[WLapseRetrieval]*(1-r))
	return clampS(collapsed)
}

// clampS floors stability at minStability.
func clampS(s float64) float64 {
	return math.Max(s, minStability)
}

// clampD clamps difficulty to [1, 10].
func clampD(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}

// finite reports whether every value is a usable float (no NaN, no Inf).
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
