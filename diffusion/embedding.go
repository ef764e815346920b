package diffusion

import (
	"math"

	"github.com/jimstein/diffstock/types"
	"gonum.org/v1/gonum/mat"
)

// AssetEmbedding is the [A+1, E_asset] lookup table; row A is the reserved
// UNKNOWN embedding used for symbols outside the training universe.
type AssetEmbedding struct {
	dim  int
	rows *mat.Dense // [A+1, dim]
}

func NewAssetEmbeddingFromParams(p *types.ModelParameters, numAssets, dim int) (*AssetEmbedding, error) {
	t, err := p.Get("asset_embedding", []int{numAssets + 1, dim})
	if err != nil {
		return nil, err
	}
	return &AssetEmbedding{dim: dim, rows: mat.NewDense(numAssets+1, dim, append([]float64(nil), t.Data...))}, nil
}

func NewRandomAssetEmbedding(numAssets, dim int, initFn func() float64) *AssetEmbedding {
	rows := mat.NewDense(numAssets+1, dim, nil)
	for i := 0; i < numAssets+1; i++ {
		for j := 0; j < dim; j++ {
			rows.Set(i, j, initFn())
		}
	}
	return &AssetEmbedding{dim: dim, rows: rows}
}

func (e *AssetEmbedding) StoreParams(p *types.ModelParameters) {
	r, c := e.rows.Dims()
	p.Set(types.ParamTensor{Name: "asset_embedding", Shape: []int{r, c}, Data: flatten(e.rows)})
}

// Lookup returns the embedding row for assetID, or the reserved UNKNOWN row
// (the last row) if assetID is types.UnknownAssetID or out of range.
func (e *AssetEmbedding) Lookup(assetID int) *mat.VecDense {
	numAssets := e.rows.RawMatrix().Rows - 1
	row := numAssets
	if assetID >= 0 && assetID < numAssets {
		row = assetID
	}
	out := mat.NewVecDense(e.dim, nil)
	for j := 0; j < e.dim; j++ {
		out.SetVec(j, e.rows.At(row, j))
	}
	return out
}

// StepEmbedding turns a scalar diffusion step t into a fixed-size
// sinusoidal positional encoding, the standard non-learned representation
// that downstream learned projections then mix into the conditioning path.
func StepEmbedding(t, dim int) *mat.VecDense {
	out := mat.NewVecDense(dim, nil)
	half := dim / 2
	for i := 0; i < half; i++ {
		freq := math.Pow(10000, -float64(i)/float64(half))
		out.SetVec(2*i, math.Sin(float64(t)*freq))
		if 2*i+1 < dim {
			out.SetVec(2*i+1, math.Cos(float64(t)*freq))
		}
	}
	return out
}
