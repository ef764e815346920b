package paper

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jimstein/diffstock/types"
)

// SaveStrategyFile writes f to path atomically (write-to-temp-then-rename),
// matching the checkpoint persistence pattern. File I/O failures are
// Transient and a marshal failure is Fatal; the write is not retried.
func SaveStrategyFile(path string, f types.StrategyFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return types.NewFatal(err, "strategy file: marshal failed")
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".strategy-*.tmp")
	if err != nil {
		return types.NewTransient(err, "strategy file: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewTransient(err, "strategy file: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewTransient(err, "strategy file: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return types.NewTransient(err, "strategy file: rename temp file")
	}
	return nil
}

// LoadStrategyFile reads and validates a persisted strategy file,
// rejecting with BadInput any file missing a required top-level field —
// including the literal "holdings" field, since Go's JSON decoder cannot
// distinguish "absent" from "present but empty" once unmarshaled straight
// into a slice. Scenario S6 requires the specific "missing holdings" case
// to be caught, so presence is checked against the raw object first.
func LoadStrategyFile(path string) (types.StrategyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.StrategyFile{}, types.NewTransient(err, "strategy file: read %s", path)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.StrategyFile{}, types.NewBadInput("strategy file: corrupt json: %v", err)
	}
	for _, field := range []string{"holdings", "target_weights", "schedule", "cash_usd", "initial_capital"} {
		if _, ok := raw[field]; !ok {
			return types.StrategyFile{}, types.NewBadInput("strategy file: missing required field %q", field)
		}
	}
	var f types.StrategyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return types.StrategyFile{}, types.NewBadInput("strategy file: field type mismatch: %v", err)
	}
	if err := f.Validate(); err != nil {
		return types.StrategyFile{}, err
	}
	return f, nil
}
