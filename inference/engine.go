package inference

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jimstein/diffstock/diffusion"
	"github.com/jimstein/diffstock/feature"
	"github.com/jimstein/diffstock/types"
)

// engineState is the Idle -> Loaded -> Sampling -> Loaded state machine of
// §4.2: a failure during Sampling rolls back to Loaded, a failure to load
// a checkpoint leaves the engine Idle.
type engineState string

const (
	stateIdle     engineState = "idle"
	stateLoaded   engineState = "loaded"
	stateSampling engineState = "sampling"
)

// Engine holds an immutable, checkpoint-loaded model shared by reference
// across concurrent forecast requests, per the design note that
// ModelParameters after training are read-only and shared. Mutating calls
// (Load) take the write lock; Forecast calls take only a read lock around
// the model pointer swap check, then run the sampler unlocked since the
// model itself is never mutated after load.
type Engine struct {
	mu       sync.RWMutex
	state    engineState
	model    *diffusion.Model
	registry *types.AssetRegistry
	source   types.OHLCVSource
}

func New(source types.OHLCVSource) *Engine {
	return &Engine{state: stateIdle, source: source}
}

// Load installs a checkpoint as the engine's active model.
func (e *Engine) Load(ckpt *types.Checkpoint) error {
	model, err := diffusion.NewModelFromCheckpoint(ckpt, ckpt.Registry.Size())
	if err != nil {
		e.mu.Lock()
		e.state = stateIdle
		e.mu.Unlock()
		return err
	}
	e.mu.Lock()
	e.model = model
	e.registry = ckpt.Registry
	e.state = stateLoaded
	e.mu.Unlock()
	return nil
}

// Request configures one forecast call.
type Request struct {
	Symbol    string
	Horizon   int
	NumPaths  int
	Seed      int64
	UseDDIM   bool
	DDIMSteps int
	Eta       float64
}

// Forecast runs the full pipeline of §4.4 for one symbol.
func (e *Engine) Forecast(ctx context.Context, req Request) (types.ForecastResult, types.AssetForecast, error) {
	e.mu.RLock()
	model, registry, state := e.model, e.registry, e.state
	e.mu.RUnlock()
	if state != stateLoaded && state != stateSampling {
		return types.ForecastResult{}, types.AssetForecast{}, types.NewConflict("inference: engine has no loaded model")
	}
	if req.NumPaths < 100 {
		return types.ForecastResult{}, types.AssetForecast{}, types.NewBadInput("inference: num_paths must be >= 100, got %d", req.NumPaths)
	}

	e.setState(stateSampling)
	result, forecast, err := e.runForecast(ctx, model, registry, req)
	if err != nil {
		e.setState(stateLoaded)
		return types.ForecastResult{}, types.AssetForecast{}, err
	}
	e.setState(stateLoaded)
	return result, forecast, nil
}

func (e *Engine) setState(s engineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) runForecast(ctx context.Context, model *diffusion.Model, registry *types.AssetRegistry, req Request) (types.ForecastResult, types.AssetForecast, error) {
	lCtx := model.Config.ContextLength
	end := time.Now()
	start := end.AddDate(-1, 0, 0)
	series, err := e.source.FetchRange(ctx, req.Symbol, start, end)
	if err != nil {
		return types.ForecastResult{}, types.AssetForecast{}, err
	}
	closes := series.Closes()
	if len(closes) < lCtx+1 {
		return types.ForecastResult{}, types.AssetForecast{}, types.NewBadInput(
			"inference: need %d closes for %s, got %d", lCtx+1, req.Symbol, len(closes))
	}

	window, err := feature.Normalize(closes, lCtx)
	if err != nil {
		return types.ForecastResult{}, types.AssetForecast{}, err
	}
	assetID := registry.Lookup(req.Symbol)
	cond := model.Cond(window.Z, assetID)

	rng := rand.New(rand.NewSource(req.Seed))
	horizon := req.Horizon
	if horizon != model.Config.Horizon {
		horizon = model.Config.Horizon
	}

	var rawPaths [][]float64
	if req.UseDDIM {
		steps := diffusion.DDIMSchedule(model.Config.NumSteps, maxInt(req.DDIMSteps, 1))
		rawPaths = model.BatchSampleDDIM(cond, req.NumPaths, steps, req.Eta, rng)
	} else {
		rawPaths = model.BatchSampleDDPM(cond, req.NumPaths, rng)
	}

	anchor := closes[len(closes)-1]
	pricePaths := make([][]float64, req.NumPaths)
	pathReturns := make([]float64, req.NumPaths)
	for i, z := range rawPaths {
		returns := feature.Denormalize(z, window.Mean, window.Std)
		pricePaths[i] = feature.PricesFromReturns(anchor, returns)
		var total float64
		for _, r := range returns {
			total += r
		}
		pathReturns[i] = total
	}

	p10, p30, p50, p70, p90 := ReducePercentiles(pricePaths)

	expectedReturn, annualVol, sharpe := AnnualizeReturns(pathReturns, horizon)

	result := types.ForecastResult{
		Symbol: req.Symbol, HistorySlice: closes,
		P10: p10, P30: p30, P50: p50, P70: p70, P90: p90,
		SampleReturns: pathReturns,
	}
	forecast := types.AssetForecast{
		Symbol: req.Symbol, CurrentPrice: anchor,
		ExpectedReturn: expectedReturn, AnnualVol: annualVol, Sharpe: sharpe,
		P50Price: p50[len(p50)-1], PathSampleReturns: pathReturns,
	}
	return result, forecast, nil
}

// AnnualizeReturns computes the per-path-total-log-return statistics and
// their annualized forms, per Design Note 9(b): 252 for return, sqrt(252)
// for volatility, Sharpe as their ratio.
func AnnualizeReturns(pathReturns []float64, horizonDays int) (expectedReturn, annualVol, sharpe float64) {
	n := len(pathReturns)
	if n == 0 || horizonDays == 0 {
		return 0, 0, 0
	}
	var sum float64
	for _, r := range pathReturns {
		sum += r
	}
	meanPerHorizon := sum / float64(n)

	var sq float64
	for _, r := range pathReturns {
		d := r - meanPerHorizon
		sq += d * d
	}
	stdPerHorizon := 0.0
	if n > 1 {
		stdPerHorizon = math.Sqrt(sq / float64(n-1))
	}

	perDayReturn := meanPerHorizon / float64(horizonDays)
	perDayVol := stdPerHorizon / math.Sqrt(float64(horizonDays))

	expectedReturn = perDayReturn * types.TradingDaysPerYear
	annualVol = perDayVol * math.Sqrt(types.TradingDaysPerYear)
	if annualVol > 0 {
		sharpe = expectedReturn / annualVol
	}
	return expectedReturn, annualVol, sharpe
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
