package types

// Default optimizer constants, grounded in the source implementation's
// tuned values. Callers may override any of these per request.
const (
	DefaultMaxSingleWeight = 0.40
	DefaultMinSingleWeight = 0.02
	DefaultTargetAnnualVol = 0.16
	DefaultCVaRAlpha       = 0.05
	DefaultOptimizerSamples = 2000
	TradingDaysPerYear     = 252.0
	RiskFreeRate           = 0.05
)

// PortfolioAllocation is the optimizer's output: a feasible weight vector
// plus the statistics that justify it.
type PortfolioAllocation struct {
	Weights             map[string]float64 `json:"weights"`
	ExpectedAnnualReturn float64           `json:"expected_annual_return"`
	ExpectedAnnualVol    float64           `json:"expected_annual_vol"`
	SharpeRatio          float64           `json:"sharpe_ratio"`
	CVaR95               float64           `json:"cvar_95"`
	Leverage             float64           `json:"leverage"`
}

// Sum returns the sum of all weights; used to check the simplex invariant.
func (a PortfolioAllocation) Sum() float64 {
	var s float64
	for _, w := range a.Weights {
		s += w
	}
	return s
}

// Feasible checks invariant 5 of the testable properties: every weight is
// either exactly zero or within [wMin, wMax].
func (a PortfolioAllocation) Feasible(wMin, wMax float64) bool {
	for _, w := range a.Weights {
		if w == 0 {
			continue
		}
		if w < wMin || w > wMax {
			return false
		}
	}
	return true
}
