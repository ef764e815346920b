package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the closed set of fill directions.
type TradeSide string

const (
	Buy  TradeSide = "BUY"
	Sell TradeSide = "SELL"
)

// Holding is a long-only position. Quantity uses decimal so whole-share and
// fractional-share modes share one representation and snapshot accounting
// stays exact per testable property 3.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// Trade is one committed fill. ID is a client-facing identifier distinct
// from any exchange order ID (paper trading never talks to a real venue).
type Trade struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Side      TradeSide       `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
}

// Notional is quantity * price, computed rather than stored to avoid the
// two ever drifting apart.
func (t Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// Snapshot is a durable, timestamped record of full portfolio state.
type Snapshot struct {
	Timestamp          time.Time          `json:"timestamp"`
	CashUSD            decimal.Decimal    `json:"cash_usd"`
	Holdings           []Holding          `json:"holdings"`
	SymbolPrices       map[string]decimal.Decimal `json:"symbol_prices"`
	TotalValue         decimal.Decimal    `json:"total_value"`
	PnLUSD             decimal.Decimal    `json:"pnl_usd"`
	PnLPct             float64            `json:"pnl_pct"`
	BenchmarkReturnPct float64            `json:"benchmark_return_pct"`
}

// HoldingsValue recomputes cash + sum(qty*price) independent of the stored
// TotalValue, used by tests asserting invariant 3.
func (s Snapshot) HoldingsValue() decimal.Decimal {
	total := s.CashUSD
	for _, h := range s.Holdings {
		price, ok := s.SymbolPrices[h.Symbol]
		if !ok {
			continue
		}
		total = total.Add(h.Quantity.Mul(price))
	}
	return total
}

// EngineState is the lifecycle shared by TrainingState and PaperState.
type EngineState string

const (
	StateIdle     EngineState = "idle"
	StateStarting EngineState = "starting"
	StateRunning  EngineState = "running"
	StatePaused   EngineState = "paused"
	StateStopped  EngineState = "stopped"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// edge: Idle/Stopped -> Running (Start), Running <-> Paused, either -> Stopped.
func (s EngineState) CanTransition(next EngineState) bool {
	switch s {
	case StateIdle, StateStopped:
		return next == StateRunning || next == StateStarting
	case StateStarting:
		return next == StateRunning || next == StateStopped
	case StateRunning:
		return next == StatePaused || next == StateStopped
	case StatePaused:
		return next == StateRunning || next == StateStopped
	}
	return false
}

// Schedule holds the two daily rebalance times plus the weekly optimization
// window, all as local wall-clock times.
type Schedule struct {
	Time1                string   `json:"time1"` // "HH:MM"
	Time2                string   `json:"time2"`
	OptimizationTime     string   `json:"optimization_time"`
	OptimizationWeekdays []time.Weekday `json:"optimization_weekdays"`
}

// StrategyFile is the full persisted paper-trading state, written
// atomically and reloaded verbatim by load().
type StrategyFile struct {
	InitialCapital decimal.Decimal    `json:"initial_capital"`
	CashUSD        decimal.Decimal    `json:"cash_usd"`
	Holdings       []Holding          `json:"holdings"`
	TargetWeights  map[string]float64 `json:"target_weights"`
	Schedule       Schedule           `json:"schedule"`
	TradeHistory   []Trade            `json:"trade_history"`
	Snapshots      []Snapshot         `json:"snapshots"`
}

// Validate checks the minimal shape needed before the engine trusts a
// loaded strategy file; a missing Holdings field (nil, as opposed to an
// empty-but-present slice) is indistinguishable from absent in Go's decoder,
// so callers that need scenario S6's exact "missing holdings" rejection
// should decode into a map first. See paper.LoadStrategyFile.
func (f StrategyFile) Validate() error {
	if f.TargetWeights == nil {
		return NewBadInput("strategy file: missing target_weights")
	}
	if f.Schedule.Time1 == "" || f.Schedule.Time2 == "" {
		return NewBadInput("strategy file: missing schedule times")
	}
	return nil
}

// TrainingStatus is the read-only snapshot exposed at /api/train/status.
type TrainingStatus struct {
	State        EngineState `json:"state"`
	Epoch        int         `json:"epoch"`
	TotalEpochs  int         `json:"total_epochs"`
	TrainLoss    float64     `json:"train_loss"`
	ValLoss      float64     `json:"val_loss"`
	BestValLoss  float64     `json:"best_val_loss"`
	LearningRate float64     `json:"learning_rate"`
	ElapsedSecs  float64     `json:"elapsed_secs"`
	Error        string      `json:"error,omitempty"`
}

// PaperStatus is the read-only snapshot exposed at /api/paper/status.
type PaperStatus struct {
	State          EngineState        `json:"state"`
	InitialCapital decimal.Decimal    `json:"initial_capital"`
	CashUSD        decimal.Decimal    `json:"cash_usd"`
	Holdings       []Holding          `json:"holdings"`
	TargetWeights  map[string]float64 `json:"target_weights"`
	Schedule       Schedule           `json:"schedule"`
	LastSnapshot   *Snapshot          `json:"last_snapshot,omitempty"`
	RecentTrades   []Trade            `json:"recent_trades"`
}
