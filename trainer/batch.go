package trainer

import (
	"github.com/jimstein/diffstock/feature"
	"github.com/jimstein/diffstock/types"
)

// BuildExamples slices one symbol's close series into overlapping
// (context, target) windows of length (L_ctx, H), normalizing each window
// independently per §4.3 step 2. Windows whose normalization is rejected
// (flat prices, non-finite values) are skipped rather than failing the
// whole series, since a single bad window should not abort training on an
// otherwise-usable symbol.
func BuildExamples(series types.SymbolSeries, assetID, lCtx, horizon int) []Example {
	closes := series.Closes()
	examples := make([]Example, 0)
	// A window needs lCtx+horizon+1 closes: lCtx+1 to form the context
	// returns, horizon more to form the target returns.
	need := lCtx + horizon + 1
	for start := 0; start+need <= len(closes); start++ {
		window := closes[start : start+need]
		ctxCloses := window[:lCtx+1]
		targetCloses := window[lCtx : lCtx+horizon+1]

		ctxWindow, err := feature.Normalize(ctxCloses, lCtx)
		if err != nil {
			continue
		}
		targetReturns, err := feature.LogReturns(targetCloses)
		if err != nil {
			continue
		}
		z := feature.RenormalizeReturns(targetReturns, ctxWindow.Mean, ctxWindow.Std)
		examples = append(examples, Example{
			AssetID: assetID,
			Context: ctxWindow.Z,
			Target:  z,
			Mean:    ctxWindow.Mean,
			Std:     ctxWindow.Std,
		})
	}
	return examples
}
