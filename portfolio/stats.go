// Package portfolio implements the sampled mean-variance optimizer with
// CVaR-adjusted local refinement and volatility targeting described for the
// system's portfolio construction step.
package portfolio

import (
	"math"
	"sort"

	"github.com/jimstein/diffstock/types"
	"gonum.org/v1/gonum/mat"
)

// ReturnStatistics is the cross-asset mean vector and covariance matrix
// computed from aligned Monte-Carlo path samples.
type ReturnStatistics struct {
	Symbols []string
	Mean    *mat.VecDense
	Cov     *mat.Dense
	// Paths is [minPathCount][numAssets], aligned by path index, kept
	// around for the CVaR computation which needs per-path portfolio
	// returns rather than just the first two moments.
	Paths [][]float64
}

// ComputeReturnStatistics forms (mean, covariance) across the given
// forecasts, aligning Monte-Carlo paths by index and truncating to the
// shortest path count when forecasts disagree in length.
func ComputeReturnStatistics(forecasts []types.AssetForecast) ReturnStatistics {
	n := len(forecasts)
	minPaths := len(forecasts[0].PathSampleReturns)
	for _, f := range forecasts {
		if len(f.PathSampleReturns) < minPaths {
			minPaths = len(f.PathSampleReturns)
		}
	}
	paths := make([][]float64, minPaths)
	for p := 0; p < minPaths; p++ {
		paths[p] = make([]float64, n)
		for a, f := range forecasts {
			paths[p][a] = f.PathSampleReturns[p]
		}
	}

	mean := mat.NewVecDense(n, nil)
	for a := range forecasts {
		var sum float64
		for p := 0; p < minPaths; p++ {
			sum += paths[p][a]
		}
		mean.SetVec(a, sum/float64(minPaths))
	}

	cov := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var acc float64
			for p := 0; p < minPaths; p++ {
				di := paths[p][i] - mean.AtVec(i)
				dj := paths[p][j] - mean.AtVec(j)
				acc += di * dj
			}
			v := acc / float64(maxInt(minPaths-1, 1))
			cov.Set(i, j, v)
			cov.Set(j, i, v)
		}
	}

	symbols := make([]string, n)
	for i, f := range forecasts {
		symbols[i] = f.Symbol
	}
	return ReturnStatistics{Symbols: symbols, Mean: mean, Cov: cov, Paths: paths}
}

// PortfolioReturn computes w^T * m.
func PortfolioReturn(w []float64, stats ReturnStatistics) float64 {
	var sum float64
	for i, wi := range w {
		sum += wi * stats.Mean.AtVec(i)
	}
	return sum
}

// PortfolioVariance computes w^T * Sigma * w.
func PortfolioVariance(w []float64, stats ReturnStatistics) float64 {
	n := len(w)
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum += w[i] * stats.Cov.At(i, j) * w[j]
		}
	}
	return math.Max(sum, 0)
}

// PortfolioSharpe computes (w^T m) / sqrt(w^T Sigma w), returning 0 when
// the denominator underflows to zero.
func PortfolioSharpe(w []float64, stats ReturnStatistics) float64 {
	variance := PortfolioVariance(w, stats)
	if variance <= 0 {
		return 0
	}
	return PortfolioReturn(w, stats) / math.Sqrt(variance)
}

// PortfolioCVaR95 computes the negative mean of the worst 5% of per-path
// portfolio returns, using stats.Paths (the raw aligned samples, not just
// the first two moments, since tail risk is not determined by mean/cov
// alone).
func PortfolioCVaR95(w []float64, stats ReturnStatistics, alpha float64) float64 {
	n := len(stats.Paths)
	if n == 0 {
		return 0
	}
	portReturns := make([]float64, n)
	for p, row := range stats.Paths {
		var sum float64
		for i, wi := range w {
			sum += wi * row[i]
		}
		portReturns[p] = sum
	}
	sort.Float64s(portReturns)
	tailCount := int(math.Ceil(alpha * float64(n)))
	if tailCount < 1 {
		tailCount = 1
	}
	var sum float64
	for i := 0; i < tailCount; i++ {
		sum += portReturns[i]
	}
	return -sum / float64(tailCount)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
