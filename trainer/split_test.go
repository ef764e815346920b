package trainer

import "testing"

func makeExamples(n, assetID int) []Example {
	out := make([]Example, n)
	for i := range out {
		out[i] = Example{AssetID: assetID, Context: []float64{float64(i)}, Target: []float64{float64(i)}}
	}
	return out
}

func TestPurgedSplitRespectsTemporalOrder(t *testing.T) {
	examples := makeExamples(100, 0)
	train, val := PurgedSplit(examples, 0.8, 2)

	if len(train) == 0 || len(val) == 0 {
		t.Fatalf("expected non-empty train and val, got %d/%d", len(train), len(val))
	}
	lastTrain := train[len(train)-1].Context[0]
	firstVal := val[0].Context[0]
	if firstVal <= lastTrain {
		t.Errorf("validation set is not strictly after training set: firstVal=%v lastTrain=%v", firstVal, lastTrain)
	}
}

func TestPurgedSplitEmbargoGap(t *testing.T) {
	examples := makeExamples(20, 0)
	embargo := 3
	train, val := PurgedSplit(examples, 0.5, embargo)
	lastTrain := train[len(train)-1].Context[0]
	firstVal := val[0].Context[0]
	if firstVal-lastTrain < float64(embargo) {
		t.Errorf("embargo gap too small: firstVal=%v lastTrain=%v embargo=%d", firstVal, lastTrain, embargo)
	}
}

func TestPurgedSplitKeepsAssetsSeparate(t *testing.T) {
	examples := append(makeExamples(10, 0), makeExamples(10, 1)...)
	train, val := PurgedSplit(examples, 0.8, 1)
	seen := map[int]bool{}
	for _, e := range append(train, val...) {
		seen[e.AssetID] = true
	}
	if len(seen) != 2 {
		t.Errorf("expected both assets represented, got %v", seen)
	}
}
