package feature

import (
	"math"
	"testing"
)

func TestFFDWeightsFirstDifference(t *testing.T) {
	weights := FFDWeights(1.0, 1e-5)
	if len(weights) < 2 {
		t.Fatalf("expected at least 2 weights, got %d", len(weights))
	}
	if math.Abs(weights[0]-1.0) > 1e-12 {
		t.Errorf("weights[0] = %v, want 1.0", weights[0])
	}
	if math.Abs(weights[1]+1.0) > 1e-12 {
		t.Errorf("weights[1] = %v, want -1.0", weights[1])
	}
}

func TestFracDiffLength(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out, err := FracDiff(closes, 0.5, 1e-4)
	if err != nil {
		t.Fatalf("FracDiff: %v", err)
	}
	weights := FFDWeights(0.5, 1e-4)
	wantLen := len(closes) - len(weights) + 1
	if len(out) != wantLen {
		t.Errorf("len(out) = %d, want %d", len(out), wantLen)
	}
}

func TestFracDiffRejectsTooShort(t *testing.T) {
	_, err := FracDiff([]float64{1, 2, 3}, 0.9, 1e-12)
	if err == nil {
		t.Fatal("expected error for too-short series")
	}
}
