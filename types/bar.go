package types

import (
	"context"
	"time"
)

// Bar is one daily OHLCV observation. Close is the only field the core
// forecasting and training pipeline reads; the rest exists for adapters and
// display.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// SymbolSeries is an ordered sequence of Bars for one ticker. Timestamps must
// strictly increase; gaps larger than the calendar tolerance are dropped by
// the producer, never interpolated.
type SymbolSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Closes extracts the close-price series in order.
func (s SymbolSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// OHLCVSource is the external collaborator contract for historical data
// fetch. Implementations own caching, retry, and provider selection; the
// core only depends on this interface. Calls are a suspension point per the
// concurrency model and should honor ctx cancellation.
type OHLCVSource interface {
	// FetchRange returns bars for symbol in [start, end), ascending by
	// timestamp. Returns a Transient error for retryable provider failures,
	// BadInput for an unknown symbol.
	FetchRange(ctx context.Context, symbol string, start, end time.Time) (SymbolSeries, error)
}

// QuoteStream is the external collaborator contract for live quotes
// consumed by the Paper Execution Engine. A call may block on I/O and is a
// suspension point.
type QuoteStream interface {
	// LatestPrices returns the most recent price the implementation has for
	// each requested symbol (AlpacaFeed uses the latest quote's bid/ask
	// midpoint). Symbols with no available quote are omitted from the result
	// map, not zero-filled; the caller treats a missing symbol as
	// unavailable this round.
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}
