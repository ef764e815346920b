package types

import (
	"encoding/json"
	"sync"
)

// UnknownAssetID is the reserved slot for symbols seen at inference time
// that were not part of the training universe.
const UnknownAssetID = -1

// AssetRegistry is a bijection symbol <-> dense asset id in [0, A), plus a
// reserved UNKNOWN row at index A. It is created when training begins and
// persisted alongside the checkpoint.
type AssetRegistry struct {
	mu       sync.RWMutex
	symbolID map[string]int
	idSymbol []string
}

// NewAssetRegistry creates an empty registry.
func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{symbolID: make(map[string]int)}
}

// NewAssetRegistryFromSymbols builds a registry over a fixed, deterministic
// universe, assigning ids in the given order.
func NewAssetRegistryFromSymbols(symbols []string) *AssetRegistry {
	r := NewAssetRegistry()
	for _, s := range symbols {
		r.GetOrCreate(s)
	}
	return r
}

// GetOrCreate returns the asset id for symbol, creating a new dense id if
// the symbol has not been seen before. Only used at train time.
func (r *AssetRegistry) GetOrCreate(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.symbolID[symbol]; ok {
		return id
	}
	id := len(r.idSymbol)
	r.symbolID[symbol] = id
	r.idSymbol = append(r.idSymbol, symbol)
	return id
}

// Lookup returns the asset id for symbol, or UnknownAssetID if the symbol
// was never registered. Used at inference time: unknown symbols fall back
// to the reserved UNKNOWN embedding row rather than failing.
func (r *AssetRegistry) Lookup(symbol string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.symbolID[symbol]; ok {
		return id
	}
	return UnknownAssetID
}

// Size returns A, the number of registered (non-UNKNOWN) assets.
func (r *AssetRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.idSymbol)
}

// Symbols returns the registered symbols in id order.
func (r *AssetRegistry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.idSymbol))
	copy(out, r.idSymbol)
	return out
}

// registrySnapshot is the JSON-serializable form embedded in a checkpoint.
type registrySnapshot struct {
	Symbols []string `json:"symbols"`
}

// MarshalJSON serializes the registry as its symbol list; ids are
// reassigned on load in the same order, which reproduces the same mapping.
func (r *AssetRegistry) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(registrySnapshot{Symbols: r.idSymbol})
}

func (r *AssetRegistry) UnmarshalJSON(data []byte) error {
	var snap registrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbolID = make(map[string]int, len(snap.Symbols))
	r.idSymbol = append([]string(nil), snap.Symbols...)
	for i, s := range r.idSymbol {
		r.symbolID[s] = i
	}
	return nil
}
