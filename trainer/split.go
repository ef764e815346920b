// Package trainer implements the batched training loop: example
// construction, a temporally purged train/validation split, the diffusion
// loss optimization step, checkpointing, and early stopping.
package trainer

// Example is one (context, target) training pair for a single asset.
type Example struct {
	AssetID int
	Context []float64 // length L_ctx, standardized
	Target  []float64 // length H, standardized
	Mean    float64
	Std     float64
}

// PurgedSplit partitions examples into train/validation sets by temporal
// order within each asset, never by random shuffle across time: this is the
// same leakage concern de Prado's purged cross-validation addresses for
// overlapping, serially-correlated financial labels, simplified here to a
// single boundary per asset with embargo examples dropped on each side of
// the split point, so the last training example and the first validation
// example start 2*embargo+1 positions apart.
func PurgedSplit(examples []Example, trainFrac float64, embargo int) (train, val []Example) {
	byAsset := make(map[int][]Example)
	order := make([]int, 0)
	for _, ex := range examples {
		if _, ok := byAsset[ex.AssetID]; !ok {
			order = append(order, ex.AssetID)
		}
		byAsset[ex.AssetID] = append(byAsset[ex.AssetID], ex)
	}
	for _, assetID := range order {
		group := byAsset[assetID]
		n := len(group)
		cut := int(float64(n) * trainFrac)
		trainEnd := cut - embargo
		if trainEnd < 0 {
			trainEnd = 0
		}
		valStart := cut + embargo
		if valStart > n {
			valStart = n
		}
		train = append(train, group[:trainEnd]...)
		val = append(val, group[valStart:]...)
	}
	return train, val
}
