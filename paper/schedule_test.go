package paper

import (
	"testing"
	"time"

	"github.com/jimstein/diffstock/types"
)

func TestParseHHMM(t *testing.T) {
	h, m, err := ParseHHMM("09:30")
	if err != nil || h != 9 || m != 30 {
		t.Fatalf("ParseHHMM(09:30) = %d,%d,%v", h, m, err)
	}
	if _, _, err := ParseHHMM("25:00"); err == nil {
		t.Error("expected rejection of out-of-range hour")
	}
	if _, _, err := ParseHHMM("bad"); err == nil {
		t.Error("expected rejection of malformed string")
	}
}

func TestNextRebalanceReturnsSmallestFutureInstant(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC) // Monday
	schedule := types.Schedule{
		Time1: "09:00", // already passed today -> tomorrow 09:00
		Time2: "15:00", // later today
	}
	next, err := NextRebalance(now, schedule)
	if err != nil {
		t.Fatalf("NextRebalance: %v", err)
	}
	want := time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRebalanceWeekdayWindow(t *testing.T) {
	now := time.Date(2026, 8, 3, 16, 0, 0, 0, time.UTC) // Monday
	schedule := types.Schedule{
		Time1:                "09:00",
		Time2:                "09:05",
		OptimizationTime:     "12:00",
		OptimizationWeekdays: []time.Weekday{time.Wednesday},
	}
	next, err := NextRebalance(now, schedule)
	if err != nil {
		t.Fatalf("NextRebalance: %v", err)
	}
	if next.Weekday() != time.Tuesday {
		t.Errorf("expected the daily candidate (Tuesday 09:00) to win, got %v", next)
	}

	// On Wednesday morning both daily times have already passed today (next
	// daily candidate is Thursday 00:01), so the Wednesday 12:00 window is
	// the smallest future candidate.
	now2 := time.Date(2026, 8, 5, 11, 0, 0, 0, time.UTC) // Wednesday
	schedule2 := types.Schedule{
		Time1:                "00:01",
		Time2:                "00:02",
		OptimizationTime:     "12:00",
		OptimizationWeekdays: []time.Weekday{time.Wednesday},
	}
	next2, err := NextRebalance(now2, schedule2)
	if err != nil {
		t.Fatalf("NextRebalance: %v", err)
	}
	if next2.Weekday() != time.Wednesday || next2.Hour() != 12 {
		t.Errorf("expected Wednesday 12:00 window, got %v", next2)
	}
}

func TestNextRebalanceRejectsEmptySchedule(t *testing.T) {
	_, err := NextRebalance(time.Now(), types.Schedule{})
	if err == nil {
		t.Fatal("expected BadInput for empty schedule")
	}
	if types.KindOf(err) != types.BadInput {
		t.Errorf("kind = %v, want BadInput", types.KindOf(err))
	}
}
