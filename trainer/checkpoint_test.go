package trainer

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/jimstein/diffstock/diffusion"
	"github.com/jimstein/diffstock/types"
)

func TestSaveLoadCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	cfg := types.DefaultDiffusionConfig()
	cfg.ContextLength = 8
	cfg.Horizon = 4
	cfg.HiddenDim = 4
	cfg.Channels = 4
	cfg.AssetEmbedDim = 3
	cfg.DilationDepth = 2
	cfg.NumSteps = 10

	rng := rand.New(rand.NewSource(7))
	model := diffusion.NewRandomModel(cfg, 2, func() float64 { return rng.NormFloat64() * 0.05 })
	registry := types.NewAssetRegistryFromSymbols([]string{"AAA", "BBB"})
	ckpt := model.ToCheckpoint(registry, 0.123, 5)

	if err := SaveCheckpointAtomic(path, ckpt); err != nil {
		t.Fatalf("SaveCheckpointAtomic: %v", err)
	}

	loaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if loaded.Epoch != 5 {
		t.Errorf("Epoch = %d, want 5", loaded.Epoch)
	}
	if loaded.BestValLoss != 0.123 {
		t.Errorf("BestValLoss = %v, want 0.123", loaded.BestValLoss)
	}
	if loaded.Registry.Size() != 2 {
		t.Errorf("Registry.Size() = %d, want 2", loaded.Registry.Size())
	}

	if _, err := diffusion.NewModelFromCheckpoint(loaded, loaded.Registry.Size()); err != nil {
		t.Fatalf("NewModelFromCheckpoint: %v", err)
	}
}

func TestLoadCheckpointRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	_, err := LoadCheckpoint(path)
	if types.KindOf(err) != types.Fatal {
		t.Fatalf("expected Fatal for corrupt checkpoint, got %v", err)
	}
}
