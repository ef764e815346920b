package paper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jimstein/diffstock/types"
	"github.com/shopspring/decimal"
)

func TestSaveLoadStrategyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.json")

	f := types.StrategyFile{
		InitialCapital: decimal.NewFromInt(10000),
		CashUSD:        decimal.NewFromFloat(104.95),
		Holdings: []types.Holding{
			{Symbol: "A", Quantity: decimal.NewFromInt(99), AvgCost: decimal.NewFromInt(100)},
		},
		TargetWeights: map[string]float64{"A": 1.0},
		Schedule:      types.Schedule{Time1: "09:00", Time2: "15:00"},
	}
	if err := SaveStrategyFile(path, f); err != nil {
		t.Fatalf("SaveStrategyFile: %v", err)
	}
	loaded, err := LoadStrategyFile(path)
	if err != nil {
		t.Fatalf("LoadStrategyFile: %v", err)
	}
	if !loaded.CashUSD.Equal(f.CashUSD) {
		t.Errorf("cash = %v, want %v", loaded.CashUSD, f.CashUSD)
	}
	if len(loaded.Holdings) != 1 || loaded.Holdings[0].Symbol != "A" {
		t.Errorf("holdings = %v", loaded.Holdings)
	}
}

// TestLoadStrategyFileRejectsMissingHoldingsS6 implements scenario S6: a
// persisted file missing the holdings field is rejected as BadInput.
func TestLoadStrategyFileRejectsMissingHoldingsS6(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	corrupt := `{
		"initial_capital": "10000",
		"cash_usd": "10000",
		"target_weights": {"A": 1.0},
		"schedule": {"time1": "09:00", "time2": "15:00"}
	}`
	if err := os.WriteFile(path, []byte(corrupt), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := LoadStrategyFile(path)
	if err == nil {
		t.Fatal("expected error for missing holdings field")
	}
	if types.KindOf(err) != types.BadInput {
		t.Errorf("kind = %v, want BadInput", types.KindOf(err))
	}
}

func TestLoadStrategyFileRejectsCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := LoadStrategyFile(path)
	if err == nil || types.KindOf(err) != types.BadInput {
		t.Fatalf("expected BadInput, got %v", err)
	}
}
