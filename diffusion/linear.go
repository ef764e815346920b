package diffusion

import (
	"github.com/jimstein/diffstock/types"
	"gonum.org/v1/gonum/mat"
)

// Linear is a dense affine map y = W*x + b, backed by gonum matrices. Every
// learned projection in the encoder and denoiser (conditioner projections,
// diffusion-step MLP, input/output projections) is one of these.
type Linear struct {
	W *mat.Dense
	B *mat.VecDense
}

// NewLinearFromParams loads a Linear's weight and bias out of a
// ModelParameters map, validating shapes against (out, in).
func NewLinearFromParams(p *types.ModelParameters, prefix string, out, in int) (Linear, error) {
	wt, err := p.Get(prefix+".w", []int{out, in})
	if err != nil {
		return Linear{}, err
	}
	bt, err := p.Get(prefix+".b", []int{out})
	if err != nil {
		return Linear{}, err
	}
	return Linear{
		W: mat.NewDense(out, in, append([]float64(nil), wt.Data...)),
		B: mat.NewVecDense(out, append([]float64(nil), bt.Data...)),
	}, nil
}

// Apply computes W*x + b.
func (l Linear) Apply(x *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(l.W.RawMatrix().Rows, nil)
	out.MulVec(l.W, x)
	out.AddVec(out, l.B)
	return out
}

// StoreLinear writes a Linear's weight and bias into a ModelParameters map
// under prefix, used when Model.ToCheckpoint and Model.Parameters snapshot
// the live weights.
func StoreLinear(p *types.ModelParameters, prefix string, l Linear) {
	r, c := l.W.Dims()
	p.Set(types.ParamTensor{Name: prefix + ".w", Shape: []int{r, c}, Data: flatten(l.W)})
	p.Set(types.ParamTensor{Name: prefix + ".b", Shape: []int{r}, Data: append([]float64(nil), l.B.RawVector().Data...)})
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func vec(data []float64) *mat.VecDense {
	return mat.NewVecDense(len(data), append([]float64(nil), data...))
}

func vecData(v *mat.VecDense) []float64 {
	return append([]float64(nil), v.RawVector().Data...)
}

func newLinear(out, in int, initFn func() float64) Linear {
	w := mat.NewDense(out, in, nil)
	for i := 0; i < out; i++ {
		for j := 0; j < in; j++ {
			w.Set(i, j, initFn())
		}
	}
	b := mat.NewVecDense(out, make([]float64, out))
	return Linear{W: w, B: b}
}

func checkVecLen(name string, v *mat.VecDense, want int) error {
	if v.Len() != want {
		return types.NewFatal(nil, "diffusion: %s has length %d, want %d", name, v.Len(), want)
	}
	return nil
}
