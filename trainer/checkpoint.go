package trainer

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jimstein/diffstock/types"
)

// SaveCheckpointAtomic writes ckpt to path via write-to-temp-then-rename, so
// a reader never observes a partially written checkpoint and a crash mid
// write never corrupts the previous good checkpoint.
func SaveCheckpointAtomic(path string, ckpt *types.Checkpoint) error {
	ckpt.Freeze()
	data, err := json.Marshal(ckpt)
	if err != nil {
		return types.NewFatal(err, "checkpoint: marshal failed")
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return types.NewTransient(err, "checkpoint: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewTransient(err, "checkpoint: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewTransient(err, "checkpoint: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return types.NewTransient(err, "checkpoint: rename temp file")
	}
	return nil
}

// LoadCheckpoint reads and validates a checkpoint file, thawing its
// parameter map for immediate use.
func LoadCheckpoint(path string) (*types.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewTransient(err, "checkpoint: read %s", path)
	}
	var ckpt types.Checkpoint
	ckpt.Registry = types.NewAssetRegistry()
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, types.NewFatal(err, "checkpoint: corrupt file %s", path)
	}
	if err := ckpt.Config.Validate(); err != nil {
		return nil, err
	}
	ckpt.Thaw()
	return &ckpt, nil
}
