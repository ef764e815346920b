package marketfeed

import (
	"context"
	"testing"
	"time"

	"github.com/jimstein/diffstock/types"
)

func TestFixtureFeedFetchRangeFiltersByWindow(t *testing.T) {
	f := NewFixtureFeed()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, 10)
	for i := range bars {
		bars[i] = types.Bar{Timestamp: base.AddDate(0, 0, i), Close: float64(100 + i)}
	}
	f.SetSeries("AAA", types.SymbolSeries{Symbol: "AAA", Bars: bars})

	got, err := f.FetchRange(context.Background(), "AAA", base.AddDate(0, 0, 2), base.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(got.Bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(got.Bars))
	}
}

func TestFixtureFeedUnknownSymbolIsBadInput(t *testing.T) {
	f := NewFixtureFeed()
	_, err := f.FetchRange(context.Background(), "ZZZ", time.Now(), time.Now())
	if err == nil || types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestFixtureFeedLatestPricesOmitsUnknown(t *testing.T) {
	f := NewFixtureFeed()
	f.SetQuote("AAA", 101.5)
	out, err := f.LatestPrices(context.Background(), []string{"AAA", "ZZZ"})
	if err != nil {
		t.Fatalf("LatestPrices: %v", err)
	}
	if len(out) != 1 || out["AAA"] != 101.5 {
		t.Errorf("got %v", out)
	}
	if _, ok := out["ZZZ"]; ok {
		t.Error("expected ZZZ to be omitted, not zero-filled")
	}
}
