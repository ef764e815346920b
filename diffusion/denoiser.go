package diffusion

import (
	"fmt"
	"math"

	"github.com/jimstein/diffstock/types"
	"gonum.org/v1/gonum/mat"
)

const convKernel = 3

// ResidualBlock is one dilated causal convolution layer of the denoiser
// stack: a causal conv over the horizon dimension, gated by conditioning and
// diffusion-step projections, producing a residual (added back to the block
// input) and a skip contribution (summed across all blocks).
type ResidualBlock struct {
	dilation int
	channels int
	// ConvW has shape [2*channels, channels, convKernel], flattened row-major.
	ConvW    []float64
	ConvB    []float64 // [2*channels]
	CondProj Linear    // condDim -> 2*channels
	DiffProj Linear    // channels -> 2*channels
	OutProj  Linear    // channels -> 2*channels (residual | skip)
}

func convWIndex(cOut, cIn, k, channels int) int {
	return (cOut*channels+cIn)*convKernel + k
}

// causalConv applies the block's dilated causal convolution to input, a
// [channels][horizon] feature map, returning a [2*channels][horizon] map.
func (b *ResidualBlock) causalConv(input [][]float64, horizon int) [][]float64 {
	out := make([][]float64, 2*b.channels)
	for cOut := 0; cOut < 2*b.channels; cOut++ {
		out[cOut] = make([]float64, horizon)
		for h := 0; h < horizon; h++ {
			v := b.ConvB[cOut]
			for cIn := 0; cIn < b.channels; cIn++ {
				for k := 0; k < convKernel; k++ {
					idx := h - b.dilation*(convKernel-1-k)
					if idx < 0 {
						continue
					}
					v += b.ConvW[convWIndex(cOut, cIn, k, b.channels)] * input[cIn][idx]
				}
			}
			out[cOut][h] = v
		}
	}
	return out
}

// Forward runs one residual block. input is [channels][horizon]; cond and
// diffEmb are broadcast across every horizon position since they are
// constant for the whole sampling step. Returns (residualOut, skipOut),
// each [channels][horizon].
func (b *ResidualBlock) Forward(input [][]float64, cond, diffEmb *mat.VecDense) (residual, skip [][]float64) {
	horizon := len(input[0])
	condContribution := b.CondProj.Apply(cond)
	diffContribution := b.DiffProj.Apply(diffEmb)

	conv := b.causalConv(input, horizon)
	filter := make([][]float64, b.channels)
	gate := make([][]float64, b.channels)
	for c := 0; c < b.channels; c++ {
		filter[c] = make([]float64, horizon)
		gate[c] = make([]float64, horizon)
		for h := 0; h < horizon; h++ {
			filter[c][h] = conv[c][h] + condContribution.AtVec(c) + diffContribution.AtVec(c)
			gate[c][h] = conv[b.channels+c][h] + condContribution.AtVec(b.channels+c) + diffContribution.AtVec(b.channels+c)
		}
	}

	gated := make([][]float64, b.channels)
	for c := 0; c < b.channels; c++ {
		gated[c] = make([]float64, horizon)
		for h := 0; h < horizon; h++ {
			gated[c][h] = math.Tanh(filter[c][h]) * sigmoid(gate[c][h])
		}
	}

	residual = make([][]float64, b.channels)
	skip = make([][]float64, b.channels)
	for c := range residual {
		residual[c] = make([]float64, horizon)
		skip[c] = make([]float64, horizon)
	}
	invSqrt2 := 1.0 / math.Sqrt2
	for h := 0; h < horizon; h++ {
		col := mat.NewVecDense(b.channels, nil)
		for c := 0; c < b.channels; c++ {
			col.SetVec(c, gated[c][h])
		}
		proj := b.OutProj.Apply(col)
		for c := 0; c < b.channels; c++ {
			residual[c][h] = (input[c][h] + proj.AtVec(c)) * invSqrt2
			skip[c][h] = proj.AtVec(b.channels + c)
		}
	}
	return residual, skip
}

func blockPrefix(i int) string {
	return fmt.Sprintf("denoiser.block%d", i)
}

func newResidualBlockFromParams(p *types.ModelParameters, i, channels, condDim int) (*ResidualBlock, error) {
	dilation := 1 << uint(i)
	prefix := blockPrefix(i)
	wT, err := p.Get(prefix+".conv_w", []int{2 * channels, channels, convKernel})
	if err != nil {
		return nil, err
	}
	bT, err := p.Get(prefix+".conv_b", []int{2 * channels})
	if err != nil {
		return nil, err
	}
	condProj, err := NewLinearFromParams(p, prefix+".cond_proj", 2*channels, condDim)
	if err != nil {
		return nil, err
	}
	diffProj, err := NewLinearFromParams(p, prefix+".diff_proj", 2*channels, channels)
	if err != nil {
		return nil, err
	}
	outProj, err := NewLinearFromParams(p, prefix+".out_proj", 2*channels, channels)
	if err != nil {
		return nil, err
	}
	return &ResidualBlock{
		dilation: dilation, channels: channels,
		ConvW: append([]float64(nil), wT.Data...), ConvB: append([]float64(nil), bT.Data...),
		CondProj: condProj, DiffProj: diffProj, OutProj: outProj,
	}, nil
}

func newRandomResidualBlock(i, channels, condDim int, initFn func() float64) *ResidualBlock {
	dilation := 1 << uint(i)
	convW := make([]float64, 2*channels*channels*convKernel)
	for k := range convW {
		convW[k] = initFn()
	}
	convB := make([]float64, 2*channels)
	return &ResidualBlock{
		dilation: dilation, channels: channels,
		ConvW: convW, ConvB: convB,
		CondProj: newLinear(2*channels, condDim, initFn),
		DiffProj: newLinear(2*channels, channels, initFn),
		OutProj:  newLinear(2*channels, channels, initFn),
	}
}

func (b *ResidualBlock) storeParams(p *types.ModelParameters, i int) {
	prefix := blockPrefix(i)
	p.Set(types.ParamTensor{Name: prefix + ".conv_w", Shape: []int{2 * b.channels, b.channels, convKernel}, Data: append([]float64(nil), b.ConvW...)})
	p.Set(types.ParamTensor{Name: prefix + ".conv_b", Shape: []int{2 * b.channels}, Data: append([]float64(nil), b.ConvB...)})
	StoreLinear(p, prefix+".cond_proj", b.CondProj)
	StoreLinear(p, prefix+".diff_proj", b.DiffProj)
	StoreLinear(p, prefix+".out_proj", b.OutProj)
}

// EpsilonTheta is the full denoiser D(x_t, t, cond): input projection,
// diffusion-step embedding MLP, a stack of dilated residual blocks with
// exponentially increasing dilation, and an output head reducing the summed
// skip connections to a predicted noise vector.
type EpsilonTheta struct {
	channels int
	horizon  int
	hidden   int
	Blocks   []*ResidualBlock
	InputProj  Linear // 1 -> channels
	DiffMLP1   Linear // hidden -> channels
	DiffMLP2   Linear // channels -> channels
	OutputProj1 Linear // channels -> channels
	OutputProj2 Linear // channels -> 1
}

func NewEpsilonThetaFromParams(p *types.ModelParameters, cfg types.DiffusionConfig) (*EpsilonTheta, error) {
	channels := cfg.Channels
	condDim := cfg.CondDim()
	inputProj, err := NewLinearFromParams(p, "denoiser.input_proj", channels, 1)
	if err != nil {
		return nil, err
	}
	diffMLP1, err := NewLinearFromParams(p, "denoiser.diff_mlp1", channels, cfg.HiddenDim)
	if err != nil {
		return nil, err
	}
	diffMLP2, err := NewLinearFromParams(p, "denoiser.diff_mlp2", channels, channels)
	if err != nil {
		return nil, err
	}
	outProj1, err := NewLinearFromParams(p, "denoiser.output_proj1", channels, channels)
	if err != nil {
		return nil, err
	}
	outProj2, err := NewLinearFromParams(p, "denoiser.output_proj2", 1, channels)
	if err != nil {
		return nil, err
	}
	blocks := make([]*ResidualBlock, cfg.DilationDepth)
	for i := 0; i < cfg.DilationDepth; i++ {
		b, err := newResidualBlockFromParams(p, i, channels, condDim)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
	}
	return &EpsilonTheta{
		channels: channels, horizon: cfg.Horizon, hidden: cfg.HiddenDim,
		Blocks: blocks, InputProj: inputProj, DiffMLP1: diffMLP1, DiffMLP2: diffMLP2,
		OutputProj1: outProj1, OutputProj2: outProj2,
	}, nil
}

func NewRandomEpsilonTheta(cfg types.DiffusionConfig, initFn func() float64) *EpsilonTheta {
	channels := cfg.Channels
	condDim := cfg.CondDim()
	blocks := make([]*ResidualBlock, cfg.DilationDepth)
	for i := range blocks {
		blocks[i] = newRandomResidualBlock(i, channels, condDim, initFn)
	}
	return &EpsilonTheta{
		channels: channels, horizon: cfg.Horizon, hidden: cfg.HiddenDim,
		Blocks:      blocks,
		InputProj:   newLinear(channels, 1, initFn),
		DiffMLP1:    newLinear(channels, cfg.HiddenDim, initFn),
		DiffMLP2:    newLinear(channels, channels, initFn),
		OutputProj1: newLinear(channels, channels, initFn),
		OutputProj2: newLinear(1, channels, initFn),
	}
}

func (e *EpsilonTheta) StoreParams(p *types.ModelParameters) {
	StoreLinear(p, "denoiser.input_proj", e.InputProj)
	StoreLinear(p, "denoiser.diff_mlp1", e.DiffMLP1)
	StoreLinear(p, "denoiser.diff_mlp2", e.DiffMLP2)
	StoreLinear(p, "denoiser.output_proj1", e.OutputProj1)
	StoreLinear(p, "denoiser.output_proj2", e.OutputProj2)
	for i, b := range e.Blocks {
		b.storeParams(p, i)
	}
}

// Predict computes D(x_t, t, cond): xt is the noisy horizon vector of
// length horizon, stepEmb is the sinusoidal encoding of t, cond is
// concat(encoder hidden state, asset embedding).
func (e *EpsilonTheta) Predict(xt []float64, stepEmb, cond *mat.VecDense) []float64 {
	diffEmb := e.DiffMLP2.Apply(applySiLU(e.DiffMLP1.Apply(stepEmb)))

	input := make([][]float64, e.channels)
	for c := 0; c < e.channels; c++ {
		input[c] = make([]float64, len(xt))
	}
	for h, x := range xt {
		proj := e.InputProj.Apply(mat.NewVecDense(1, []float64{x}))
		for c := 0; c < e.channels; c++ {
			input[c][h] = proj.AtVec(c)
		}
	}

	skipSum := make([][]float64, e.channels)
	for c := range skipSum {
		skipSum[c] = make([]float64, len(xt))
	}
	cur := input
	for _, block := range e.Blocks {
		residual, skip := block.Forward(cur, cond, diffEmb)
		cur = residual
		for c := 0; c < e.channels; c++ {
			for h := range skip[c] {
				skipSum[c][h] += skip[c][h]
			}
		}
	}
	scale := 1.0 / math.Sqrt(float64(len(e.Blocks)))
	out := make([]float64, len(xt))
	for h := range out {
		col := mat.NewVecDense(e.channels, nil)
		for c := 0; c < e.channels; c++ {
			col.SetVec(c, skipSum[c][h]*scale)
		}
		hidden := applyReLU(e.OutputProj1.Apply(col))
		final := e.OutputProj2.Apply(hidden)
		out[h] = final.AtVec(0)
	}
	return out
}

func applySiLU(v *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		out.SetVec(i, x*sigmoid(x))
	}
	return out
}

func applyReLU(v *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		out.SetVec(i, math.Max(0, v.AtVec(i)))
	}
	return out
}
