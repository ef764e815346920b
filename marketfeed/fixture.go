package marketfeed

import (
	"context"
	"sync"
	"time"

	"github.com/jimstein/diffstock/types"
)

// FixtureFeed is a deterministic in-memory OHLCVSource/QuoteStream used in
// tests and local development, grounded on the same interfaces AlpacaFeed
// satisfies so callers never branch on which implementation is wired.
type FixtureFeed struct {
	mu     sync.RWMutex
	series map[string]types.SymbolSeries
	quotes map[string]float64
}

func NewFixtureFeed() *FixtureFeed {
	return &FixtureFeed{series: make(map[string]types.SymbolSeries), quotes: make(map[string]float64)}
}

func (f *FixtureFeed) SetSeries(symbol string, s types.SymbolSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[symbol] = s
}

func (f *FixtureFeed) SetQuote(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = price
}

func (f *FixtureFeed) FetchRange(ctx context.Context, symbol string, start, end time.Time) (types.SymbolSeries, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.series[symbol]
	if !ok {
		return types.SymbolSeries{}, types.NewBadInput("fixture: unknown symbol %q", symbol)
	}
	filtered := types.SymbolSeries{Symbol: symbol}
	for _, b := range s.Bars {
		if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
			filtered.Bars = append(filtered.Bars, b)
		}
	}
	return filtered, nil
}

func (f *FixtureFeed) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := f.quotes[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}
