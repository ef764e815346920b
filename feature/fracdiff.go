package feature

import (
	"math"

	"github.com/jimstein/diffstock/types"
)

// FFDWeights computes the fixed-width fractional differentiation weights
// for differencing order d, truncated once a weight's magnitude falls below
// threshold. This is de Prado's "Advances in Financial Machine Learning"
// FFD weighting scheme, supplied here as an optional alternative to plain
// log-returns for series that need more memory preserved than a first
// difference keeps.
func FFDWeights(d, threshold float64) []float64 {
	weights := []float64{1.0}
	for k := 1; ; k++ {
		prev := weights[k-1]
		w := -prev * (d - float64(k) + 1) / float64(k)
		if math.Abs(w) < threshold {
			break
		}
		weights = append(weights, w)
		if k > 10000 {
			break
		}
	}
	return weights
}

// FracDiff applies fixed-width fractional differentiation to closes using
// the weights from FFDWeights. The first len(weights)-1 points have no full
// window and are dropped, matching the source algorithm's fixed-window
// convention rather than padding with zeros.
func FracDiff(closes []float64, d, threshold float64) ([]float64, error) {
	weights := FFDWeights(d, threshold)
	width := len(weights)
	if len(closes) < width {
		return nil, types.NewBadInput("fracdiff: need at least %d closes for d=%.3g, got %d", width, d, len(closes))
	}
	out := make([]float64, len(closes)-width+1)
	for t := width - 1; t < len(closes); t++ {
		var acc float64
		for k, w := range weights {
			acc += w * closes[t-k]
		}
		out[t-width+1] = acc
	}
	return out, nil
}
