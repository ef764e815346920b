package types

// EpsStd is the std-dev floor below which a normalized window is rejected.
const EpsStd = 1e-6

// NormalizedWindow is a fixed-length sequence of standardized log-returns,
// carrying the rolling (mean, std) used to produce it so it can be inverted.
type NormalizedWindow struct {
	Z    []float64 `json:"z"`
	Mean float64   `json:"mean"`
	Std  float64   `json:"std"`
}

// Valid reports whether the window satisfies the std-dev floor invariant.
func (w NormalizedWindow) Valid() bool {
	return w.Std >= EpsStd
}
