// Package diffusion implements the conditional denoising diffusion model:
// a causal context encoder, an asset embedding table, a dilated causal
// convolutional denoiser, the forward noising process, and both the DDPM
// and DDIM reverse samplers.
package diffusion

import (
	"math"

	"github.com/jimstein/diffstock/types"
)

// Schedule holds the precomputed variance-preserving noise schedule for a
// DiffusionConfig. All tensors are computed once and reused by every
// forward/reverse call; nothing here is recomputed at run time.
type Schedule struct {
	Beta                []float64
	Alpha               []float64
	AlphaBar            []float64
	SqrtAlphaBar        []float64
	SqrtOneMinusAlphaBar []float64
	PosteriorVarianceFn func(t int) float64
}

// NewSchedule builds a linear variance-preserving schedule from cfg. Index
// 0 corresponds to diffusion step t=1; callers index with t-1.
func NewSchedule(cfg types.DiffusionConfig) *Schedule {
	T := cfg.NumSteps
	s := &Schedule{
		Beta:                 make([]float64, T),
		Alpha:                make([]float64, T),
		AlphaBar:             make([]float64, T),
		SqrtAlphaBar:         make([]float64, T),
		SqrtOneMinusAlphaBar: make([]float64, T),
	}
	for i := 0; i < T; i++ {
		frac := float64(i) / float64(maxInt(T-1, 1))
		beta := cfg.BetaMin + frac*(cfg.BetaMax-cfg.BetaMin)
		s.Beta[i] = beta
		s.Alpha[i] = 1 - beta
	}
	cum := 1.0
	for i := 0; i < T; i++ {
		cum *= s.Alpha[i]
		s.AlphaBar[i] = cum
		s.SqrtAlphaBar[i] = math.Sqrt(cum)
		s.SqrtOneMinusAlphaBar[i] = math.Sqrt(1 - cum)
	}
	if cfg.PosteriorVariance == "posterior" {
		s.PosteriorVarianceFn = s.posteriorVariance
	} else {
		s.PosteriorVarianceFn = func(t int) float64 { return s.Beta[t-1] }
	}
	return s
}

// posteriorVariance implements the true DDPM posterior variance
// beta_t * (1 - abar_{t-1}) / (1 - abar_t), with abar_0 := 1.
func (s *Schedule) posteriorVariance(t int) float64 {
	abarPrev := 1.0
	if t > 1 {
		abarPrev = s.AlphaBar[t-2]
	}
	abarT := s.AlphaBar[t-1]
	return s.Beta[t-1] * (1 - abarPrev) / (1 - abarT)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Noise applies the forward process at step t (1-indexed): x_t = sqrt(abar_t)*x0 + sqrt(1-abar_t)*eps.
func (s *Schedule) Noise(x0 []float64, t int, eps []float64) []float64 {
	a := s.SqrtAlphaBar[t-1]
	b := s.SqrtOneMinusAlphaBar[t-1]
	out := make([]float64, len(x0))
	for i := range x0 {
		out[i] = a*x0[i] + b*eps[i]
	}
	return out
}
