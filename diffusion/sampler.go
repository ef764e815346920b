package diffusion

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SampleDDPM runs the ancestral reverse process from pure noise down to x_0
// for a single path, given a fixed conditioning vector. rng supplies both
// the initial noise and the per-step stochastic term.
func (m *Model) SampleDDPM(cond *mat.VecDense, rng *rand.Rand) []float64 {
	H := m.Config.Horizon
	T := m.Config.NumSteps
	x := make([]float64, H)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for t := T; t >= 1; t-- {
		eps := m.PredictNoise(x, t, cond)
		alphaT := m.Schedule.Alpha[t-1]
		betaT := m.Schedule.Beta[t-1]
		sqrtOneMinusAbar := m.Schedule.SqrtOneMinusAlphaBar[t-1]
		next := make([]float64, H)
		variance := m.Schedule.PosteriorVarianceFn(t)
		sigma := math.Sqrt(math.Max(variance, 0))
		for i := range x {
			mean := (x[i] - (betaT/sqrtOneMinusAbar)*eps[i]) / math.Sqrt(alphaT)
			z := 0.0
			if t > 1 {
				z = rng.NormFloat64()
			}
			next[i] = mean + sigma*z
		}
		x = next
	}
	return x
}

// DDIMSchedule builds a strictly decreasing sub-sequence of [1, T] with K
// (approximately) evenly spaced steps, the quasi-stochastic/deterministic
// fast sampler's step subsequence.
func DDIMSchedule(T, K int) []int {
	if K >= T {
		out := make([]int, T)
		for i := 0; i < T; i++ {
			out[i] = T - i
		}
		return out
	}
	out := make([]int, 0, K)
	stride := float64(T) / float64(K)
	for i := 0; i < K; i++ {
		step := T - int(float64(i)*stride)
		if step < 1 {
			step = 1
		}
		out = append(out, step)
	}
	return out
}

// SampleDDIM runs the deterministic-or-quasi-stochastic fast reverse
// process. eta=0 is fully deterministic given (seed, cond); eta>0
// reintroduces DDPM-like stochasticity at each step.
func (m *Model) SampleDDIM(cond *mat.VecDense, steps []int, eta float64, rng *rand.Rand) []float64 {
	H := m.Config.Horizon
	x := make([]float64, H)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for k, t := range steps {
		eps := m.PredictNoise(x, t, cond)
		abarT := m.Schedule.AlphaBar[t-1]
		sqrtAbarT := m.Schedule.SqrtAlphaBar[t-1]
		sqrtOneMinusAbarT := m.Schedule.SqrtOneMinusAlphaBar[t-1]

		x0hat := make([]float64, H)
		for i := range x {
			v := (x[i] - sqrtOneMinusAbarT*eps[i]) / sqrtAbarT
			x0hat[i] = math.Max(-3, math.Min(3, v))
		}

		var abarPrev float64 = 1.0
		if k+1 < len(steps) {
			abarPrev = m.Schedule.AlphaBar[steps[k+1]-1]
		} else {
			abarPrev = 1.0
		}
		sigma := 0.0
		if eta > 0 {
			sigma = eta * math.Sqrt((1-abarPrev)/(1-abarT)*(1-abarT/abarPrev))
		}
		sqrtAbarPrev := math.Sqrt(abarPrev)
		dirCoeff := math.Sqrt(math.Max(1-abarPrev-sigma*sigma, 0))

		next := make([]float64, H)
		for i := range x {
			z := 0.0
			if sigma > 0 {
				z = rng.NormFloat64()
			}
			next[i] = sqrtAbarPrev*x0hat[i] + dirCoeff*eps[i] + sigma*z
		}
		x = next
	}
	return x
}

// BatchSampleDDIM draws numPaths independent DDIM samples sharing one
// conditioning vector — the batched Monte Carlo rollout used by the
// inference engine.
func (m *Model) BatchSampleDDIM(cond *mat.VecDense, numPaths int, steps []int, eta float64, rng *rand.Rand) [][]float64 {
	out := make([][]float64, numPaths)
	for p := 0; p < numPaths; p++ {
		out[p] = m.SampleDDIM(cond, steps, eta, rng)
	}
	return out
}

// BatchSampleDDPM draws numPaths independent full ancestral samples.
func (m *Model) BatchSampleDDPM(cond *mat.VecDense, numPaths int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, numPaths)
	for p := 0; p < numPaths; p++ {
		out[p] = m.SampleDDPM(cond, rng)
	}
	return out
}
