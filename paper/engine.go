// Package paper implements the Paper Execution Engine: target-weight
// reconciliation against live quotes, scheduled rebalance, fills with fee
// accounting, and portfolio snapshots.
package paper

import (
	"context"
	"sync"
	"time"

	"github.com/jimstein/diffstock/types"
	"github.com/shopspring/decimal"
)

const DefaultFeeRate = 0.0005

// DefaultBenchmarkSymbol is the prototype's default buy-and-hold comparison.
const DefaultBenchmarkSymbol = "QQQ"

const minuteSnapshotInterval = 60 * time.Second

// Engine owns the holdings map and cash exclusively; external readers only
// ever see deep-copied snapshots, matching the ownership rule that the
// execution task is the sole writer.
type Engine struct {
	mu sync.RWMutex

	state          types.EngineState
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	holdings       map[string]types.Holding
	targetWeights  map[string]float64
	schedule       types.Schedule
	trades         []types.Trade
	snapshots      []types.Snapshot

	benchmarkSymbol       string
	benchmarkInitialPrice decimal.Decimal

	quotes      types.QuoteStream
	events      chan Event
	minuteSnaps chan types.Snapshot
	pollCancel  context.CancelFunc
}

func New(quotes types.QuoteStream) *Engine {
	return &Engine{
		state:           types.StateIdle,
		quotes:          quotes,
		events:          make(chan Event, 64),
		minuteSnaps:     make(chan types.Snapshot, 16),
		benchmarkSymbol: DefaultBenchmarkSymbol,
	}
}

// SetBenchmarkSymbol changes the buy-and-hold comparison symbol. The
// baseline price resets so the next rebalance re-anchors benchmark_return_pct
// from the new symbol's current price.
func (e *Engine) SetBenchmarkSymbol(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.benchmarkSymbol = symbol
	e.benchmarkInitialPrice = decimal.Zero
}

// Start transitions Idle/Stopped -> Running, seeding cash and an empty
// holdings map.
func (e *Engine) Start(targets map[string]float64, initialCapital decimal.Decimal, schedule types.Schedule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.CanTransition(types.StateRunning) {
		return types.NewConflict("paper: cannot start from state %s", e.state)
	}
	e.state = types.StateRunning
	e.initialCapital = initialCapital
	e.cash = initialCapital
	e.holdings = make(map[string]types.Holding)
	e.targetWeights = copyWeights(targets)
	e.schedule = schedule
	e.trades = nil
	e.snapshots = nil
	e.benchmarkInitialPrice = decimal.Zero
	if e.benchmarkSymbol == "" {
		e.benchmarkSymbol = DefaultBenchmarkSymbol
	}
	e.emit(Event{Kind: EventStarted, Message: "paper engine started"})

	ctx, cancel := context.WithCancel(context.Background())
	e.pollCancel = cancel
	go e.pollMinuteSnapshots(ctx)
	return nil
}

func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.CanTransition(types.StatePaused) {
		return types.NewConflict("paper: cannot pause from state %s", e.state)
	}
	e.state = types.StatePaused
	return nil
}

func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.CanTransition(types.StateRunning) {
		return types.NewConflict("paper: cannot resume from state %s", e.state)
	}
	e.state = types.StateRunning
	return nil
}

func (e *Engine) Stop() (types.StrategyFile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.CanTransition(types.StateStopped) {
		return types.StrategyFile{}, types.NewConflict("paper: cannot stop from state %s", e.state)
	}
	e.state = types.StateStopped
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
	return e.snapshotStrategyFileLocked(), nil
}

// SetTargets replaces the target universe. If applyNow, the caller is
// responsible for triggering RunAnalysisOnce immediately after this call
// returns; otherwise the new weights simply take effect at the next
// scheduled rebalance.
func (e *Engine) SetTargets(targets map[string]float64, applyNow bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != types.StateRunning && e.state != types.StatePaused {
		return types.NewConflict("paper: cannot set targets from state %s", e.state)
	}
	e.targetWeights = copyWeights(targets)
	return nil
}

// SetSchedule replaces the rebalance schedule without disturbing holdings,
// cash, or target weights — used to update the weekly optimization window
// independent of the daily T1/T2 times.
func (e *Engine) SetSchedule(schedule types.Schedule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != types.StateRunning && e.state != types.StatePaused {
		return types.NewConflict("paper: cannot set schedule from state %s", e.state)
	}
	e.schedule = schedule
	return nil
}

// Status returns a deep-copied read-only snapshot of engine state.
func (e *Engine) Status() types.PaperStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var last *types.Snapshot
	if len(e.snapshots) > 0 {
		s := e.snapshots[len(e.snapshots)-1]
		last = &s
	}
	recent := e.trades
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	return types.PaperStatus{
		State: e.state, InitialCapital: e.initialCapital, CashUSD: e.cash,
		Holdings: copyHoldings(e.holdings), TargetWeights: copyWeights(e.targetWeights),
		Schedule: e.schedule, LastSnapshot: last, RecentTrades: append([]types.Trade(nil), recent...),
	}
}

func (e *Engine) snapshotStrategyFileLocked() types.StrategyFile {
	return types.StrategyFile{
		InitialCapital: e.initialCapital, CashUSD: e.cash,
		Holdings: copyHoldings(e.holdings), TargetWeights: copyWeights(e.targetWeights),
		Schedule: e.schedule, TradeHistory: append([]types.Trade(nil), e.trades...),
		Snapshots: append([]types.Snapshot(nil), e.snapshots...),
	}
}

// Load reconstructs state from a persisted strategy file and resumes
// Running. The file has already been validated by the caller (see
// LoadStrategyFile); a malformed file never reaches here.
func (e *Engine) Load(f types.StrategyFile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialCapital = f.InitialCapital
	e.cash = f.CashUSD
	e.holdings = make(map[string]types.Holding, len(f.Holdings))
	for _, h := range f.Holdings {
		e.holdings[h.Symbol] = h
	}
	e.targetWeights = copyWeights(f.TargetWeights)
	e.schedule = f.Schedule
	e.trades = append([]types.Trade(nil), f.TradeHistory...)
	e.snapshots = append([]types.Snapshot(nil), f.Snapshots...)
	e.state = types.StateRunning
}

// RunAnalysisOnce acquires the write lock for the whole reconcile so no
// reader ever observes a half-applied trade batch, runs the rebalance
// algorithm, and commits the resulting snapshot and trades atomically.
func (e *Engine) RunAnalysisOnce(ctx context.Context, feeRate float64, wholeShares bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != types.StateRunning {
		return types.NewConflict("paper: cannot run analysis from state %s", e.state)
	}

	symbols := make([]string, 0, len(e.targetWeights)+1)
	for s := range e.targetWeights {
		symbols = append(symbols, s)
	}
	if e.benchmarkSymbol != "" {
		symbols = append(symbols, e.benchmarkSymbol)
	}
	prices, err := e.quotes.LatestPrices(ctx, symbols)
	if err != nil {
		return err
	}

	trades, newHoldings, newCash, skipped := reconcile(e.holdings, e.targetWeights, e.cash, prices, feeRate, wholeShares)
	for _, sym := range skipped {
		e.emit(Event{Kind: EventWarning, Message: "quote unavailable, skipped this round", Symbol: sym})
	}

	e.holdings = newHoldings
	e.cash = newCash
	e.trades = append(e.trades, trades...)

	benchmarkReturnPct := e.benchmarkReturnLocked(prices)
	snapshot := buildSnapshot(newCash, newHoldings, prices, e.initialCapital, benchmarkReturnPct)
	e.snapshots = append(e.snapshots, snapshot)
	e.emit(Event{Kind: EventAnalysis, Message: "rebalance complete", TradeCount: len(trades)})
	return nil
}

// benchmarkReturnLocked computes the buy-and-hold return of the benchmark
// symbol since its first observed price, anchoring the baseline on first
// use. Caller must hold e.mu.
func (e *Engine) benchmarkReturnLocked(prices map[string]float64) float64 {
	if e.benchmarkSymbol == "" {
		return 0
	}
	priceF, ok := prices[e.benchmarkSymbol]
	if !ok {
		return 0
	}
	price := decimal.NewFromFloat(priceF)
	if e.benchmarkInitialPrice.IsZero() {
		e.benchmarkInitialPrice = price
		return 0
	}
	ret, _ := price.Sub(e.benchmarkInitialPrice).Div(e.benchmarkInitialPrice).Float64()
	return ret
}

// pollMinuteSnapshots mirrors the teacher's pollForData ticker loop: a fast,
// read-only poll purely for observability that never touches holdings and
// never takes the engine's write lock, only the same read lock Status()
// uses. It stops when ctx is cancelled, which Stop() does immediately.
func (e *Engine) pollMinuteSnapshots(ctx context.Context) {
	ticker := time.NewTicker(minuteSnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.emitMinuteSnapshot(ctx)
		}
	}
}

func (e *Engine) emitMinuteSnapshot(ctx context.Context) {
	e.mu.RLock()
	if e.state != types.StateRunning && e.state != types.StatePaused {
		e.mu.RUnlock()
		return
	}
	symbols := make([]string, 0, len(e.holdings)+1)
	for sym := range e.holdings {
		symbols = append(symbols, sym)
	}
	if e.benchmarkSymbol != "" {
		symbols = append(symbols, e.benchmarkSymbol)
	}
	holdings := copyHoldingsMap(e.holdings)
	cash := e.cash
	initialCapital := e.initialCapital
	benchmarkSymbol := e.benchmarkSymbol
	benchmarkInitial := e.benchmarkInitialPrice
	e.mu.RUnlock()

	prices, err := e.quotes.LatestPrices(ctx, symbols)
	if err != nil {
		return
	}

	benchmarkReturnPct := 0.0
	if benchmarkSymbol != "" && !benchmarkInitial.IsZero() {
		if priceF, ok := prices[benchmarkSymbol]; ok {
			price := decimal.NewFromFloat(priceF)
			benchmarkReturnPct, _ = price.Sub(benchmarkInitial).Div(benchmarkInitial).Float64()
		}
	}

	snapshot := buildSnapshot(cash, holdings, prices, initialCapital, benchmarkReturnPct)
	select {
	case e.minuteSnaps <- snapshot:
	default:
	}
}

// Snapshots exposes the minute-cadence observability stream; consumers that
// don't read it simply let snapshots drop once the channel buffer fills.
func (e *Engine) Snapshots() <-chan types.Snapshot { return e.minuteSnaps }

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) Events() <-chan Event { return e.events }

func copyWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyHoldings(m map[string]types.Holding) []types.Holding {
	out := make([]types.Holding, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}

func copyHoldingsMap(m map[string]types.Holding) map[string]types.Holding {
	out := make(map[string]types.Holding, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
