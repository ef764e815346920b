// Package inference implements the Monte-Carlo autoregressive forecasting
// pipeline: context encoding, batched reverse-diffusion sampling,
// denormalization back to price space, and percentile reduction.
package inference

import "sort"

// quantiles holds the declared percentile set, in ascending order.
var quantiles = []float64{0.1, 0.3, 0.5, 0.7, 0.9}

// Percentile returns the value at quantile q in values using linear
// interpolation between the two nearest order statistics, the tie-break
// rule named in §4.4's ordering guarantee. values must already be sorted
// ascending; Percentile neither sorts nor modifies it.
func Percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return values[n-1]
	}
	frac := pos - float64(lo)
	return values[lo]*(1-frac) + values[hi]*frac
}

// ReducePercentiles computes the P10/P30/P50/P70/P90 bands across paths,
// one column at a time. paths is [numPaths][horizon]; the columns are
// sorted independently since each horizon step's cross-path distribution is
// quantiled on its own.
func ReducePercentiles(paths [][]float64) (p10, p30, p50, p70, p90 []float64) {
	if len(paths) == 0 {
		return nil, nil, nil, nil, nil
	}
	horizon := len(paths[0])
	p10 = make([]float64, horizon)
	p30 = make([]float64, horizon)
	p50 = make([]float64, horizon)
	p70 = make([]float64, horizon)
	p90 = make([]float64, horizon)
	col := make([]float64, len(paths))
	for h := 0; h < horizon; h++ {
		for i, path := range paths {
			col[i] = path[h]
		}
		sort.Float64s(col)
		p10[h] = Percentile(col, quantiles[0])
		p30[h] = Percentile(col, quantiles[1])
		p50[h] = Percentile(col, quantiles[2])
		p70[h] = Percentile(col, quantiles[3])
		p90[h] = Percentile(col, quantiles[4])
	}
	return p10, p30, p50, p70, p90
}
