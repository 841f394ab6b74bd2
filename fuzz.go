package verso

import (
	"math"
	"math/rand"
)

// fuzzBand widens the fuzz window by factor per day of interval between
// start and end.
type fuzzBand struct {
	start, end float64
	factor     float64
}

var fuzzBands = []fuzzBand{
	{start: 2.5, end: 7.0, factor: 0.15},
	{start: 7.0, end: 20.0, factor: 0.10},
	{start: 20.0, end: math.Inf(1), factor: 0.05},
}

// fuzzWindow returns the half-width of the randomization window around an
// interval: 1 day plus a banded share of the interval itself, so long
// intervals wobble proportionally less.
func fuzzWindow(interval float64) float64 {
	w := 1.0
	for _, b := range fuzzBands {
		w += b.factor * math.Max(math.Min(interval, b.end)-b.start, 0)
	}
	return w
}

// applyFuzz randomizes a day interval within its fuzz window to keep cards
// reviewed together from staying due together forever. Intervals under 2.5
// days pass through unchanged, and the result never exceeds maxIvl.
func applyFuzz(interval, maxIvl int, rng *rand.Rand) int {
	ivl := float64(interval)
	if ivl < 2.5 {
		return interval
	}

	w := fuzzWindow(ivl)
	lo := max(2, int(math.Round(ivl-w)))
	hi := min(int(math.Round(ivl+w)), maxIvl)
	lo = min(lo, hi)

	fuzzed := lo + int(math.Round(rng.Float64()*float64(hi-lo+1)))
	return min(fuzzed, maxIvl)
}
