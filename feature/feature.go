// Package feature implements the log-return normalization and
// denormalization transform shared by the trainer and the inference engine.
package feature

import (
	"math"

	"github.com/jimstein/diffstock/types"
)

// LogReturns computes r[i] = ln(closes[i+1]/closes[i]) for i in
// [0, len(closes)-1). Fails with BadInput on any non-finite or non-positive
// close, since a log-return over a non-positive price is undefined.
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, types.NewBadInput("log returns: need at least 2 closes, got %d", len(closes))
	}
	out := make([]float64, len(closes)-1)
	for i := 0; i < len(closes)-1; i++ {
		c0, c1 := closes[i], closes[i+1]
		if !isFinitePositive(c0) || !isFinitePositive(c1) {
			return nil, types.NewBadInput("log returns: non-finite or non-positive close at index %d or %d", i, i+1)
		}
		out[i] = math.Log(c1 / c0)
	}
	return out, nil
}

func isFinitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// MeanStd returns the sample mean and sample standard deviation (ddof=1 when
// n>1, 0 otherwise) of returns.
func MeanStd(returns []float64) (mean, std float64) {
	n := len(returns)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(n-1))
	return mean, std
}

// Normalize builds a NormalizedWindow from the last L+1 closes: the trailing
// L log-returns are z-scored using their own sample (mean, std). Returns
// BadInput if there are fewer than L+1 usable closes, any close is
// non-finite/non-positive, or the resulting std is below EpsStd.
func Normalize(closes []float64, L int) (types.NormalizedWindow, error) {
	if len(closes) < L+1 {
		return types.NormalizedWindow{}, types.NewBadInput("normalize: need %d closes, got %d", L+1, len(closes))
	}
	tail := closes[len(closes)-(L+1):]
	returns, err := LogReturns(tail)
	if err != nil {
		return types.NormalizedWindow{}, err
	}
	mean, std := MeanStd(returns)
	if std < types.EpsStd {
		return types.NormalizedWindow{}, types.NewBadInput("normalize: std %.3g below floor %.3g", std, types.EpsStd)
	}
	z := make([]float64, len(returns))
	for i, r := range returns {
		z[i] = (r - mean) / std
	}
	return types.NormalizedWindow{Z: z, Mean: mean, Std: std}, nil
}

// Denormalize inverts Normalize's z-scoring step only, returning log-returns
// from standardized values. It does not reconstruct prices; use
// PricesFromReturns for that.
func Denormalize(z []float64, mean, std float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = v*std + mean
	}
	return out
}

// PricesFromReturns compounds log-returns forward from an anchor close:
// P_{t+1} = P_t * exp(r_{t+1}).
func PricesFromReturns(anchor float64, returns []float64) []float64 {
	out := make([]float64, len(returns))
	p := anchor
	for i, r := range returns {
		p = p * math.Exp(r)
		out[i] = p
	}
	return out
}

// RenormalizeReturns re-derives z-scores from raw log-returns using a given
// (mean, std), the inverse direction used by round-trip tests: it recovers
// the same z produced by Normalize for the same window.
func RenormalizeReturns(returns []float64, mean, std float64) []float64 {
	z := make([]float64, len(returns))
	for i, r := range returns {
		z[i] = (r - mean) / std
	}
	return z
}
