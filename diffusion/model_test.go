package diffusion

import (
	"math/rand"
	"testing"

	"github.com/jimstein/diffstock/types"
)

func smallConfig() types.DiffusionConfig {
	cfg := types.DefaultDiffusionConfig()
	cfg.NumSteps = 8
	cfg.ContextLength = 16
	cfg.Horizon = 4
	cfg.AssetEmbedDim = 3
	cfg.HiddenDim = 4
	cfg.Channels = 4
	cfg.DilationDepth = 2
	return cfg
}

func testInit(rng *rand.Rand) func() float64 {
	return func() float64 { return rng.NormFloat64() * 0.05 }
}

func TestModelSampleDDIMDeterministicAtEtaZero(t *testing.T) {
	cfg := smallConfig()
	rng := rand.New(rand.NewSource(1))
	m := NewRandomModel(cfg, 2, testInit(rng))

	context := make([]float64, cfg.ContextLength)
	for i := range context {
		context[i] = rng.NormFloat64() * 0.01
	}
	cond := m.Cond(context, 0)
	steps := DDIMSchedule(cfg.NumSteps, 4)

	a := m.SampleDDIM(cond, steps, 0, rand.New(rand.NewSource(42)))
	b := m.SampleDDIM(cond, steps, 0, rand.New(rand.NewSource(42)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("DDIM with eta=0 not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestModelSampleOutputLength(t *testing.T) {
	cfg := smallConfig()
	rng := rand.New(rand.NewSource(2))
	m := NewRandomModel(cfg, 2, testInit(rng))
	context := make([]float64, cfg.ContextLength)
	cond := m.Cond(context, 1)

	ddpm := m.SampleDDPM(cond, rng)
	if len(ddpm) != cfg.Horizon {
		t.Errorf("DDPM sample length = %d, want %d", len(ddpm), cfg.Horizon)
	}

	steps := DDIMSchedule(cfg.NumSteps, 5)
	ddim := m.SampleDDIM(cond, steps, 0.5, rng)
	if len(ddim) != cfg.Horizon {
		t.Errorf("DDIM sample length = %d, want %d", len(ddim), cfg.Horizon)
	}
}

func TestModelUnknownAssetFallsBackToReservedRow(t *testing.T) {
	cfg := smallConfig()
	rng := rand.New(rand.NewSource(3))
	m := NewRandomModel(cfg, 2, testInit(rng))
	unknown := m.Assets.Lookup(types.UnknownAssetID)
	reserved := m.Assets.Lookup(2) // row index == numAssets is the reserved row
	for i := 0; i < unknown.Len(); i++ {
		if unknown.AtVec(i) != reserved.AtVec(i) {
			t.Fatalf("UNKNOWN lookup did not hit the reserved row at %d", i)
		}
	}
}

func TestCheckpointRoundTripPreservesParameterNames(t *testing.T) {
	cfg := smallConfig()
	rng := rand.New(rand.NewSource(4))
	m := NewRandomModel(cfg, 2, testInit(rng))
	registry := types.NewAssetRegistryFromSymbols([]string{"AAA", "BBB"})
	ckpt := m.ToCheckpoint(registry, 0.5, 3)
	ckpt.Thaw()

	reloaded, err := NewModelFromCheckpoint(ckpt, registry.Size())
	if err != nil {
		t.Fatalf("NewModelFromCheckpoint: %v", err)
	}
	context := make([]float64, cfg.ContextLength)
	origCond := m.Cond(context, 0)
	newCond := reloaded.Cond(context, 0)
	for i := 0; i < origCond.Len(); i++ {
		if origCond.AtVec(i) != newCond.AtVec(i) {
			t.Fatalf("cond mismatch after checkpoint round trip at %d", i)
		}
	}
}
