package portfolio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/jimstein/diffstock/types"
)

func syntheticForecast(symbol string, seed int64, n int) types.AssetForecast {
	rng := rand.New(rand.NewSource(seed))
	paths := make([]float64, n)
	for i := range paths {
		paths[i] = 0.01 + rng.NormFloat64()*0.05
	}
	return types.AssetForecast{Symbol: symbol, CurrentPrice: 100, PathSampleReturns: paths}
}

func TestOptimizeFeasibilityS3(t *testing.T) {
	forecasts := []types.AssetForecast{
		syntheticForecast("AAA", 1, 1000),
		syntheticForecast("BBB", 2, 1000),
		syntheticForecast("CCC", 3, 1000),
		syntheticForecast("DDD", 4, 1000),
	}
	params := DefaultParams()
	params.Samples = 500
	params.RefineIters = 200

	alloc, err := Optimize(forecasts, params)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	sum := alloc.Sum()
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("weights sum to %v, want 1.0", sum)
	}
	if !alloc.Feasible(types.DefaultMinSingleWeight, types.DefaultMaxSingleWeight) {
		t.Errorf("weights not feasible: %v", alloc.Weights)
	}
	if alloc.Leverage < 0.5 || alloc.Leverage > 2.0 {
		t.Errorf("leverage = %v, out of [0.5, 2.0]", alloc.Leverage)
	}
}

func TestOptimizeRejectsSingleAsset(t *testing.T) {
	_, err := Optimize([]types.AssetForecast{syntheticForecast("AAA", 1, 100)}, DefaultParams())
	if types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestInverseVarianceWeightsSumToOne(t *testing.T) {
	forecasts := []types.AssetForecast{
		syntheticForecast("AAA", 10, 200),
		syntheticForecast("BBB", 20, 200),
	}
	stats := ComputeReturnStatistics(forecasts)
	w := InverseVarianceWeights(stats)
	var sum float64
	for _, wi := range w {
		sum += wi
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("sum = %v, want 1.0", sum)
	}
}

func TestPortfolioCVaR95ComputesWithoutPanic(t *testing.T) {
	forecasts := []types.AssetForecast{
		syntheticForecast("AAA", 30, 500),
		syntheticForecast("BBB", 31, 500),
	}
	stats := ComputeReturnStatistics(forecasts)
	cvar := PortfolioCVaR95([]float64{0.5, 0.5}, stats, 0.05)
	_ = cvar // CVaR of a zero-mean-ish distribution can be positive or negative; just ensure it computes without panic
}
