package feature

import (
	"math"
	"testing"

	"github.com/jimstein/diffstock/types"
)

func TestLogReturns(t *testing.T) {
	closes := []float64{100, 110, 99}
	returns, err := LogReturns(closes)
	if err != nil {
		t.Fatalf("LogReturns: %v", err)
	}
	want := []float64{math.Log(1.1), math.Log(99.0 / 110.0)}
	for i := range want {
		if math.Abs(returns[i]-want[i]) > 1e-12 {
			t.Errorf("returns[%d] = %v, want %v", i, returns[i], want[i])
		}
	}
}

func TestLogReturnsRejectsNonPositive(t *testing.T) {
	_, err := LogReturns([]float64{100, -5, 90})
	if types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestLogReturnsRejectsTooShort(t *testing.T) {
	_, err := LogReturns([]float64{100})
	if types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	closes := make([]float64, 66)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * (1 + 0.001*float64(i%7-3))
	}
	w, err := Normalize(closes, 64)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	returns := Denormalize(w.Z, w.Mean, w.Std)
	gotZ := RenormalizeReturns(returns, w.Mean, w.Std)
	for i := range w.Z {
		if math.Abs(gotZ[i]-w.Z[i]) > 1e-8 {
			t.Errorf("round trip z[%d] = %v, want %v", i, gotZ[i], w.Z[i])
		}
	}
}

func TestNormalizeRejectsFlatSeries(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100
	}
	_, err := Normalize(closes, 9)
	if types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput for flat series, got %v", err)
	}
}

func TestNormalizeRejectsShortWindow(t *testing.T) {
	_, err := Normalize([]float64{100, 101}, 5)
	if types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestPricesFromReturnsCompounds(t *testing.T) {
	prices := PricesFromReturns(100, []float64{0, math.Log(1.1)})
	if math.Abs(prices[0]-100) > 1e-9 {
		t.Errorf("prices[0] = %v, want 100", prices[0])
	}
	if math.Abs(prices[1]-110) > 1e-9 {
		t.Errorf("prices[1] = %v, want 110", prices[1])
	}
}

func TestMeanStdSingleSample(t *testing.T) {
	mean, std := MeanStd([]float64{5})
	if mean != 5 || std != 0 {
		t.Errorf("MeanStd single sample = (%v, %v), want (5, 0)", mean, std)
	}
}
