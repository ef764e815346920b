package trainer

import (
	"math"

	"github.com/jimstein/diffstock/diffusion"
	"github.com/jimstein/diffstock/types"
)

// AdamOptimizer is a per-tensor Adam optimizer. The model has no analytic
// backward pass (there is no autodiff dependency in this stack), so
// gradients are estimated by central finite differences on the batch loss;
// Adam's moment averaging is what makes that estimate usable despite its
// noise.
type AdamOptimizer struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Eps     float64
	EpsGrad float64 // finite-difference step size

	step int
	m    map[string][]float64
	v    map[string][]float64
}

func NewAdamOptimizer(lr float64) *AdamOptimizer {
	return &AdamOptimizer{
		LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, EpsGrad: 1e-4,
		m: make(map[string][]float64), v: make(map[string][]float64),
	}
}

// BatchLoss computes the mean diffusion loss over a batch of examples,
// drawing one (t, eps) pair per example.
func BatchLoss(model *diffusion.Model, batch []Example, rngSample func() (int, []float64)) float64 {
	if len(batch) == 0 {
		return 0
	}
	var total float64
	for _, ex := range batch {
		cond := model.Cond(ex.Context, ex.AssetID)
		t, eps := rngSample()
		total += model.Loss(ex.Target, cond, t, eps)
	}
	return total / float64(len(batch))
}

// Step estimates the gradient of lossFn with respect to every tensor in the
// model's parameter map via central finite differences, then applies one
// Adam update in place.
func (o *AdamOptimizer) Step(model *diffusion.Model, lossFn func() float64) float64 {
	params := model.Parameters()
	names := params.Names()
	o.step++

	baseline := lossFn()
	for _, name := range names {
		t, err := params.Get(name, nil)
		if err != nil {
			continue
		}
		grad := make([]float64, len(t.Data))
		for i := range t.Data {
			orig := t.Data[i]
			t.Data[i] = orig + o.EpsGrad
			params.Set(t)
			model.LoadParameters(params)
			lossPlus := lossFn()

			t.Data[i] = orig - o.EpsGrad
			params.Set(t)
			model.LoadParameters(params)
			lossMinus := lossFn()

			grad[i] = (lossPlus - lossMinus) / (2 * o.EpsGrad)
			t.Data[i] = orig
			params.Set(t)
		}
		o.applyAdam(name, t, grad)
	}
	model.LoadParameters(params)
	return baseline
}

func (o *AdamOptimizer) applyAdam(name string, t types.ParamTensor, grad []float64) {
	m, ok := o.m[name]
	if !ok {
		m = make([]float64, len(t.Data))
		o.m[name] = m
	}
	v, ok := o.v[name]
	if !ok {
		v = make([]float64, len(t.Data))
		o.v[name] = v
	}
	b1t := powInt(o.Beta1, o.step)
	b2t := powInt(o.Beta2, o.step)
	for i := range t.Data {
		g := grad[i]
		m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
		v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g
		mHat := m[i] / (1 - b1t)
		vHat := v[i] / (1 - b2t)
		t.Data[i] -= o.LR * mHat / (sqrtf(vHat) + o.Eps)
	}
}

func powInt(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

func sqrtf(x float64) float64 {
	if x < 0 {
		return 0
	}
	return math.Sqrt(x)
}
