// Package marketfeed adapts Alpaca's market data API to the OHLCVSource and
// QuoteStream interfaces the rest of the system depends on.
package marketfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/jimstein/diffstock/types"
)

// AlpacaFeed fetches daily bars and latest quotes from Alpaca's market data
// API. It is the default OHLCVSource/QuoteStream implementation wired by
// cmd/diffstock.
type AlpacaFeed struct {
	client *marketdata.Client
}

func NewAlpacaFeed(apiKey, apiSecret string) *AlpacaFeed {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &AlpacaFeed{client: client}
}

// FetchRange fetches daily bars for symbol over [start, end), matching the
// historical-data contract used to build training context windows.
func (f *AlpacaFeed) FetchRange(ctx context.Context, symbol string, start, end time.Time) (types.SymbolSeries, error) {
	bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return types.SymbolSeries{}, types.NewTransient(err, "alpaca: fetch bars for %s", symbol)
	}
	if len(bars) == 0 {
		return types.SymbolSeries{}, types.NewBadInput("alpaca: no bars returned for %s in range", symbol)
	}
	out := types.SymbolSeries{Symbol: symbol, Bars: make([]types.Bar, len(bars))}
	for i, b := range bars {
		out.Bars[i] = types.Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		}
	}
	return out, nil
}

// LatestPrices fetches the latest quote midpoint for each requested symbol,
// skipping (not failing) any symbol whose quote is temporarily unavailable —
// the caller treats missing entries as "skip this round".
func (f *AlpacaFeed) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		quote, err := f.client.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
		if err != nil {
			continue
		}
		mid := (quote.BidPrice + quote.AskPrice) / 2
		if mid <= 0 {
			continue
		}
		out[symbol] = mid
	}
	if len(out) == 0 && len(symbols) > 0 {
		return nil, types.NewTransient(fmt.Errorf("no quotes resolved"), "alpaca: all %d symbols failed", len(symbols))
	}
	return out, nil
}
