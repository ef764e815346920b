package portfolio

import "math"

// InverseVarianceWeights is a simplified Hierarchical Risk Parity-style
// allocation: each asset's weight is proportional to the inverse of its own
// variance, the same risk-parity principle HRP applies within a cluster
// before the full tree-clustering step. It is used here as a deterministic
// seed candidate for the random feasible search rather than as the
// optimizer's primary algorithm, since the declared procedure is the
// sampled mean-variance search with CVaR refinement.
func InverseVarianceWeights(stats ReturnStatistics) []float64 {
	n := len(stats.Symbols)
	invVar := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		v := stats.Cov.At(i, i)
		if v <= 0 {
			v = 1e-8
		}
		invVar[i] = 1.0 / v
		sum += invVar[i]
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = invVar[i] / sum
	}
	return weights
}

// ClampToFeasible projects w onto the constraint box by clipping each
// weight to [0, wMax], zeroing anything below wMin, and renormalizing. Used
// to turn the HRP seed candidate into something the feasibility check can
// accept outright.
func ClampToFeasible(w []float64, wMin, wMax float64) []float64 {
	out := make([]float64, len(w))
	var sum float64
	for i, wi := range w {
		v := math.Min(wi, wMax)
		if v < wMin {
			v = 0
		}
		out[i] = v
		sum += v
	}
	if sum <= 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
