package types

import "fmt"

// DiffusionConfig is fixed at train time and stamped into the checkpoint
// header. Every downstream sampler call derives its schedule from this
// struct alone; nothing is recomputed from flags at inference time.
type DiffusionConfig struct {
	NumSteps      int     `json:"num_steps"`
	BetaMin       float64 `json:"beta_min"`
	BetaMax       float64 `json:"beta_max"`
	ContextLength int     `json:"context_length"`
	Horizon       int     `json:"horizon"`
	AssetEmbedDim int     `json:"asset_embed_dim"`
	HiddenDim     int     `json:"hidden_dim"`
	Channels      int     `json:"channels"`
	DilationDepth int     `json:"dilation_depth"`
	// PosteriorVariance records the Open Question (a) resolution: "beta" uses
	// beta_t directly as the DDPM reverse-step variance, "posterior" uses the
	// true posterior variance. Stamped so old checkpoints stay reproducible
	// even if the default changes later.
	PosteriorVariance string `json:"posterior_variance"`
}

// Validate checks the config is internally consistent before it is used to
// size any tensor.
func (c DiffusionConfig) Validate() error {
	switch {
	case c.NumSteps < 1:
		return NewFatal(nil, "diffusion config: num_steps must be >= 1, got %d", c.NumSteps)
	case c.BetaMin <= 0 || c.BetaMax <= c.BetaMin:
		return NewFatal(nil, "diffusion config: require 0 < beta_min < beta_max, got (%g, %g)", c.BetaMin, c.BetaMax)
	case c.ContextLength < 1:
		return NewFatal(nil, "diffusion config: context_length must be >= 1, got %d", c.ContextLength)
	case c.Horizon < 1:
		return NewFatal(nil, "diffusion config: horizon must be >= 1, got %d", c.Horizon)
	case c.AssetEmbedDim < 1:
		return NewFatal(nil, "diffusion config: asset_embed_dim must be >= 1, got %d", c.AssetEmbedDim)
	case c.HiddenDim < 1:
		return NewFatal(nil, "diffusion config: hidden_dim must be >= 1, got %d", c.HiddenDim)
	case c.Channels < 1:
		return NewFatal(nil, "diffusion config: channels must be >= 1, got %d", c.Channels)
	case c.DilationDepth < 1:
		return NewFatal(nil, "diffusion config: dilation_depth must be >= 1, got %d", c.DilationDepth)
	}
	if c.PosteriorVariance != "beta" && c.PosteriorVariance != "posterior" {
		return NewFatal(nil, "diffusion config: posterior_variance must be \"beta\" or \"posterior\", got %q", c.PosteriorVariance)
	}
	return nil
}

// CondDim is the conditioning vector width handed to the denoiser:
// encoder hidden state concatenated with the asset embedding.
func (c DiffusionConfig) CondDim() int {
	return c.HiddenDim + c.AssetEmbedDim
}

// DefaultDiffusionConfig returns the declared default config used when
// training is started without an explicit override.
func DefaultDiffusionConfig() DiffusionConfig {
	return DiffusionConfig{
		NumSteps:          100,
		BetaMin:           1e-4,
		BetaMax:           0.02,
		ContextLength:      64,
		Horizon:           10,
		AssetEmbedDim:     8,
		HiddenDim:         32,
		Channels:          32,
		DilationDepth:     6,
		PosteriorVariance: "beta",
	}
}

// ParamTensor is one named, shaped weight tensor in ModelParameters. Data is
// stored row-major flattened; the schema (name + shape) is validated on load
// independent of the serialization container.
type ParamTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

func (t ParamTensor) numel() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ModelParameters is the declared named-tensor schema described in §3: a
// checkpoint is this map plus the DiffusionConfig and AssetRegistry that
// produced it.
type ModelParameters struct {
	tensors map[string]ParamTensor
}

func NewModelParameters() *ModelParameters {
	return &ModelParameters{tensors: make(map[string]ParamTensor)}
}

func (p *ModelParameters) Set(t ParamTensor) {
	if p.tensors == nil {
		p.tensors = make(map[string]ParamTensor)
	}
	p.tensors[t.Name] = t
}

// Get returns the named tensor, or a Fatal error if it is absent or its
// shape does not match the forward pass's expectation.
func (p *ModelParameters) Get(name string, wantShape []int) (ParamTensor, error) {
	t, ok := p.tensors[name]
	if !ok {
		return ParamTensor{}, NewFatal(nil, "model parameters: missing tensor %q", name)
	}
	if len(wantShape) > 0 && !shapesEqual(t.Shape, wantShape) {
		return ParamTensor{}, NewFatal(nil, "model parameters: tensor %q has shape %v, want %v", name, t.Shape, wantShape)
	}
	if len(t.Data) != t.numel() {
		return ParamTensor{}, NewFatal(nil, "model parameters: tensor %q has %d values, shape implies %d", name, len(t.Data), t.numel())
	}
	return t, nil
}

func (p *ModelParameters) Names() []string {
	out := make([]string, 0, len(p.tensors))
	for n := range p.tensors {
		out = append(out, n)
	}
	return out
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Checkpoint is the persisted unit written atomically by the Trainer and
// consumed read-only by the Inference Engine.
type Checkpoint struct {
	Config        DiffusionConfig  `json:"config"`
	Registry      *AssetRegistry   `json:"registry"`
	Params        *ModelParameters `json:"-"`
	ParamList     []ParamTensor    `json:"params"`
	BestValLoss   float64          `json:"best_val_loss"`
	Epoch         int              `json:"epoch"`
}

// Freeze snapshots the current parameter map into ParamList for
// serialization; call before marshaling.
func (c *Checkpoint) Freeze() {
	c.ParamList = c.ParamList[:0]
	for _, name := range c.Params.Names() {
		t, _ := c.Params.Get(name, nil)
		c.ParamList = append(c.ParamList, t)
	}
}

// Thaw rebuilds the in-memory parameter map from ParamList; call after
// unmarshaling.
func (c *Checkpoint) Thaw() {
	c.Params = NewModelParameters()
	for _, t := range c.ParamList {
		c.Params.Set(t)
	}
}

func (c *Checkpoint) String() string {
	return fmt.Sprintf("checkpoint(epoch=%d, best_val_loss=%g, params=%d)", c.Epoch, c.BestValLoss, len(c.ParamList))
}
