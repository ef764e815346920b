package portfolio

import (
	"math"
	"math/rand"

	"github.com/jimstein/diffstock/types"
)

// Params bundles the optimizer's tunable constraints; defaults match the
// declared values.
type Params struct {
	MaxSingleWeight float64
	MinSingleWeight float64
	TargetAnnualVol float64
	CVaRAlpha       float64
	Samples         int
	RefineIters     int
	Seed            int64
}

func DefaultParams() Params {
	return Params{
		MaxSingleWeight: types.DefaultMaxSingleWeight,
		MinSingleWeight: types.DefaultMinSingleWeight,
		TargetAnnualVol: types.DefaultTargetAnnualVol,
		CVaRAlpha:       types.DefaultCVaRAlpha,
		Samples:         types.DefaultOptimizerSamples,
		RefineIters:     5000,
		Seed:            1,
	}
}

// Optimize runs the three-phase procedure: random feasible search, local
// perturbation refinement, then volatility targeting, over the forecasts
// given. At least 2 forecasts are required.
func Optimize(forecasts []types.AssetForecast, params Params) (types.PortfolioAllocation, error) {
	if len(forecasts) < 2 {
		return types.PortfolioAllocation{}, types.NewBadInput("portfolio: need at least 2 assets, got %d", len(forecasts))
	}
	stats := ComputeReturnStatistics(forecasts)
	n := len(forecasts)
	rng := rand.New(rand.NewSource(params.Seed))

	best, bestSharpe, found := randomFeasibleSearch(stats, n, params, rng)
	if !found {
		return types.PortfolioAllocation{}, types.NewFatal(nil, "portfolio: no feasible weight vector found in %d samples", params.Samples)
	}

	best = refine(best, bestSharpe, stats, params, rng)

	achievedVol := math.Sqrt(PortfolioVariance(best, stats) * types.TradingDaysPerYear)
	leverage := 1.0
	if achievedVol > 0 {
		leverage = clamp(params.TargetAnnualVol/achievedVol, 0.5, 2.0)
	}
	levered := scaleAndRenormalize(best, leverage)
	levered = dropDust(levered, 0.001)

	expectedReturn := PortfolioReturn(levered, stats) * types.TradingDaysPerYear
	finalVol := math.Sqrt(PortfolioVariance(levered, stats) * types.TradingDaysPerYear)
	sharpe := 0.0
	if finalVol > 0 {
		sharpe = expectedReturn / finalVol
	}
	cvar := PortfolioCVaR95(levered, stats, params.CVaRAlpha)

	weights := make(map[string]float64, n)
	for i, s := range stats.Symbols {
		weights[s] = levered[i]
	}

	return types.PortfolioAllocation{
		Weights: weights, ExpectedAnnualReturn: expectedReturn, ExpectedAnnualVol: finalVol,
		SharpeRatio: sharpe, CVaR95: cvar, Leverage: leverage,
	}, nil
}

// randomFeasibleSearch draws K Dirichlet-like weight vectors on the
// simplex (via normalized Exp(1) draws) and keeps the best by sharpe among
// those satisfying the per-weight constraints.
func randomFeasibleSearch(stats ReturnStatistics, n int, params Params, rng *rand.Rand) ([]float64, float64, bool) {
	var best []float64
	bestSharpe := math.Inf(-1)
	found := false

	if seed := ClampToFeasible(InverseVarianceWeights(stats), params.MinSingleWeight, params.MaxSingleWeight); feasible(seed, params.MinSingleWeight, params.MaxSingleWeight) {
		best = seed
		bestSharpe = PortfolioSharpe(seed, stats)
		found = true
	}

	for k := 0; k < params.Samples; k++ {
		w := dirichletLikeWeights(n, rng)
		if !feasible(w, params.MinSingleWeight, params.MaxSingleWeight) {
			continue
		}
		sharpe := PortfolioSharpe(w, stats)
		if !found || sharpe > bestSharpe {
			best = w
			bestSharpe = sharpe
			found = true
		}
	}
	return best, bestSharpe, found
}

func dirichletLikeWeights(n int, rng *rand.Rand) []float64 {
	w := make([]float64, n)
	var sum float64
	for i := range w {
		w[i] = rng.ExpFloat64() // Exp(1)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func feasible(w []float64, wMin, wMax float64) bool {
	for _, wi := range w {
		if wi > wMax {
			return false
		}
		if wi != 0 && wi < wMin {
			return false
		}
	}
	return true
}

// refine performs local perturbation search around the best candidate,
// accepting a proposal only if score = sharpe - 0.5*cvar improves.
func refine(w []float64, sharpe float64, stats ReturnStatistics, params Params, rng *rand.Rand) []float64 {
	n := len(w)
	cvar := PortfolioCVaR95(w, stats, params.CVaRAlpha)
	bestScore := sharpe - 0.5*cvar
	eta := 0.05
	shrink := math.Pow(0.01/eta, 1.0/float64(maxInt(params.RefineIters, 1)))

	current := append([]float64(nil), w...)
	for iter := 0; iter < params.RefineIters; iter++ {
		proposal := make([]float64, n)
		var sum float64
		for i := range proposal {
			delta := (rng.Float64()*2 - 1) * eta
			proposal[i] = math.Max(0, current[i]+delta)
			sum += proposal[i]
		}
		if sum <= 0 {
			eta *= shrink
			continue
		}
		for i := range proposal {
			proposal[i] /= sum
		}
		if feasible(proposal, params.MinSingleWeight, params.MaxSingleWeight) {
			pSharpe := PortfolioSharpe(proposal, stats)
			pCvar := PortfolioCVaR95(proposal, stats, params.CVaRAlpha)
			score := pSharpe - 0.5*pCvar
			if score > bestScore {
				bestScore = score
				current = proposal
			}
		}
		eta *= shrink
	}
	return current
}

func scaleAndRenormalize(w []float64, leverage float64) []float64 {
	out := make([]float64, len(w))
	var sum float64
	for i, wi := range w {
		out[i] = math.Min(wi*leverage, 1.0)
		sum += out[i]
	}
	if sum <= 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func dropDust(w []float64, threshold float64) []float64 {
	out := append([]float64(nil), w...)
	var sum float64
	for i, wi := range out {
		if wi < threshold {
			out[i] = 0
		} else {
			sum += out[i]
		}
	}
	if sum <= 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
