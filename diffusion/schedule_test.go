package diffusion

import (
	"testing"

	"github.com/jimstein/diffstock/types"
)

func TestScheduleBetaRange(t *testing.T) {
	cfg := types.DefaultDiffusionConfig()
	s := NewSchedule(cfg)
	if s.Beta[0] < cfg.BetaMin-1e-12 || s.Beta[0] > cfg.BetaMin+1e-9 {
		t.Errorf("Beta[0] = %v, want ~%v", s.Beta[0], cfg.BetaMin)
	}
	last := len(s.Beta) - 1
	if s.Beta[last] < cfg.BetaMax-1e-9 || s.Beta[last] > cfg.BetaMax+1e-9 {
		t.Errorf("Beta[last] = %v, want ~%v", s.Beta[last], cfg.BetaMax)
	}
}

func TestScheduleAlphaBarMonotonicDecrease(t *testing.T) {
	cfg := types.DefaultDiffusionConfig()
	s := NewSchedule(cfg)
	for i := 1; i < len(s.AlphaBar); i++ {
		if s.AlphaBar[i] >= s.AlphaBar[i-1] {
			t.Fatalf("alpha_bar not monotonically decreasing at step %d: %v >= %v", i, s.AlphaBar[i], s.AlphaBar[i-1])
		}
	}
}

func TestDDIMScheduleStrictlyDecreasing(t *testing.T) {
	steps := DDIMSchedule(100, 10)
	if len(steps) != 10 {
		t.Fatalf("len(steps) = %d, want 10", len(steps))
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] >= steps[i-1] {
			t.Fatalf("DDIM schedule not strictly decreasing at %d: %v >= %v", i, steps[i], steps[i-1])
		}
	}
}

func TestDiffusionConfigValidateRejectsBadBetas(t *testing.T) {
	cfg := types.DefaultDiffusionConfig()
	cfg.BetaMax = cfg.BetaMin
	if err := cfg.Validate(); types.KindOf(err) != types.Fatal {
		t.Fatalf("expected Fatal, got %v", err)
	}
}
