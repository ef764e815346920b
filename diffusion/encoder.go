package diffusion

import (
	"math"

	"github.com/jimstein/diffstock/types"
	"gonum.org/v1/gonum/mat"
)

// Encoder is a single-layer LSTM context summarizer: it consumes the
// ordered sequence of normalized returns one scalar at a time and produces
// a causal hidden-state vector. It is the declared default sequence
// summarizer named in the model's conditioning contract; its parameters
// live entirely in the gate weight matrices below so any equivalent
// summarizer could be swapped in against the same schema.
type Encoder struct {
	hidden int
	Wx     *mat.Dense // [4*hidden, 1]
	Wh     *mat.Dense // [4*hidden, hidden]
	B      *mat.VecDense
}

const encoderPrefix = "encoder"

// NewEncoderFromParams loads encoder weights out of a checkpoint's
// parameter map.
func NewEncoderFromParams(p *types.ModelParameters, hidden int) (*Encoder, error) {
	wxT, err := p.Get(encoderPrefix+".wx", []int{4 * hidden, 1})
	if err != nil {
		return nil, err
	}
	whT, err := p.Get(encoderPrefix+".wh", []int{4 * hidden, hidden})
	if err != nil {
		return nil, err
	}
	bT, err := p.Get(encoderPrefix+".b", []int{4 * hidden})
	if err != nil {
		return nil, err
	}
	return &Encoder{
		hidden: hidden,
		Wx:     mat.NewDense(4*hidden, 1, append([]float64(nil), wxT.Data...)),
		Wh:     mat.NewDense(4*hidden, hidden, append([]float64(nil), whT.Data...)),
		B:      mat.NewVecDense(4*hidden, append([]float64(nil), bT.Data...)),
	}, nil
}

// NewRandomEncoder initializes encoder weights with small Gaussian-ish
// noise via initFn, for training from scratch.
func NewRandomEncoder(hidden int, initFn func() float64) *Encoder {
	wx := mat.NewDense(4*hidden, 1, nil)
	wh := mat.NewDense(4*hidden, hidden, nil)
	for i := 0; i < 4*hidden; i++ {
		wx.Set(i, 0, initFn())
		for j := 0; j < hidden; j++ {
			wh.Set(i, j, initFn())
		}
	}
	return &Encoder{hidden: hidden, Wx: wx, Wh: wh, B: mat.NewVecDense(4*hidden, make([]float64, 4*hidden))}
}

// StoreParams writes the encoder's weights back into a ModelParameters map.
func (e *Encoder) StoreParams(p *types.ModelParameters) {
	p.Set(types.ParamTensor{Name: encoderPrefix + ".wx", Shape: []int{4 * e.hidden, 1}, Data: flatten(e.Wx)})
	p.Set(types.ParamTensor{Name: encoderPrefix + ".wh", Shape: []int{4 * e.hidden, e.hidden}, Data: flatten(e.Wh)})
	p.Set(types.ParamTensor{Name: encoderPrefix + ".b", Shape: []int{4 * e.hidden}, Data: vecData(e.B)})
}

// Encode runs the LSTM forward over the context window and returns the
// final hidden state h, the causal single-vector summary used as part of
// the denoiser's conditioning input.
func (e *Encoder) Encode(context []float64) *mat.VecDense {
	h := mat.NewVecDense(e.hidden, make([]float64, e.hidden))
	c := mat.NewVecDense(e.hidden, make([]float64, e.hidden))
	for _, x := range context {
		h, c = e.step(x, h, c)
	}
	return h
}

func (e *Encoder) step(x float64, hPrev, cPrev *mat.VecDense) (h, c *mat.VecDense) {
	xv := mat.NewVecDense(1, []float64{x})
	gates := mat.NewVecDense(4*e.hidden, nil)
	gates.MulVec(e.Wx, xv)
	hTerm := mat.NewVecDense(4*e.hidden, nil)
	hTerm.MulVec(e.Wh, hPrev)
	gates.AddVec(gates, hTerm)
	gates.AddVec(gates, e.B)

	H := e.hidden
	i := mat.NewVecDense(H, nil)
	f := mat.NewVecDense(H, nil)
	g := mat.NewVecDense(H, nil)
	o := mat.NewVecDense(H, nil)
	for k := 0; k < H; k++ {
		i.SetVec(k, sigmoid(gates.AtVec(k)))
		f.SetVec(k, sigmoid(gates.AtVec(H+k)))
		g.SetVec(k, math.Tanh(gates.AtVec(2*H+k)))
		o.SetVec(k, sigmoid(gates.AtVec(3*H+k)))
	}

	cNext := mat.NewVecDense(H, nil)
	hNext := mat.NewVecDense(H, nil)
	for k := 0; k < H; k++ {
		ck := f.AtVec(k)*cPrev.AtVec(k) + i.AtVec(k)*g.AtVec(k)
		cNext.SetVec(k, ck)
		hNext.SetVec(k, o.AtVec(k)*math.Tanh(ck))
	}
	return hNext, cNext
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
