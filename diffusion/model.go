package diffusion

import (
	"github.com/jimstein/diffstock/types"
	"gonum.org/v1/gonum/mat"
)

// Model ties the context encoder, asset embedding table, denoiser and
// precomputed noise schedule into the single forward contract the trainer
// and inference engine both call through.
type Model struct {
	Config   types.DiffusionConfig
	Schedule *Schedule
	Encoder  *Encoder
	Assets   *AssetEmbedding
	Denoiser *EpsilonTheta
}

// NewModelFromCheckpoint reconstructs a Model from a loaded checkpoint,
// validating every declared tensor's shape against cfg.
func NewModelFromCheckpoint(ckpt *types.Checkpoint, numAssets int) (*Model, error) {
	if err := ckpt.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := ckpt.Config
	enc, err := NewEncoderFromParams(ckpt.Params, cfg.HiddenDim)
	if err != nil {
		return nil, err
	}
	emb, err := NewAssetEmbeddingFromParams(ckpt.Params, numAssets, cfg.AssetEmbedDim)
	if err != nil {
		return nil, err
	}
	den, err := NewEpsilonThetaFromParams(ckpt.Params, cfg)
	if err != nil {
		return nil, err
	}
	return &Model{Config: cfg, Schedule: NewSchedule(cfg), Encoder: enc, Assets: emb, Denoiser: den}, nil
}

// NewRandomModel builds a freshly initialized model for training from
// scratch, given the asset universe size.
func NewRandomModel(cfg types.DiffusionConfig, numAssets int, initFn func() float64) *Model {
	return &Model{
		Config:   cfg,
		Schedule: NewSchedule(cfg),
		Encoder:  NewRandomEncoder(cfg.HiddenDim, initFn),
		Assets:   NewRandomAssetEmbedding(numAssets, cfg.AssetEmbedDim, initFn),
		Denoiser: NewRandomEpsilonTheta(cfg, initFn),
	}
}

// ToCheckpoint serializes the model's live parameters into a fresh
// ModelParameters map, ready to be wrapped in a types.Checkpoint.
func (m *Model) ToCheckpoint(registry *types.AssetRegistry, bestValLoss float64, epoch int) *types.Checkpoint {
	p := types.NewModelParameters()
	m.Encoder.StoreParams(p)
	m.Assets.StoreParams(p)
	m.Denoiser.StoreParams(p)
	ckpt := &types.Checkpoint{Config: m.Config, Registry: registry, Params: p, BestValLoss: bestValLoss, Epoch: epoch}
	ckpt.Freeze()
	return ckpt
}

// Parameters snapshots the model's live weights into a ModelParameters map,
// the same representation used by checkpointing. The optimizer flattens
// this into a single vector for its update step.
func (m *Model) Parameters() *types.ModelParameters {
	p := types.NewModelParameters()
	m.Encoder.StoreParams(p)
	m.Assets.StoreParams(p)
	m.Denoiser.StoreParams(p)
	return p
}

// LoadParameters replaces the model's live weights from p, reusing the
// existing config and asset-universe size. Used by the optimizer to write
// back an updated parameter vector after each step.
func (m *Model) LoadParameters(p *types.ModelParameters) error {
	numAssets := m.Assets.rows.RawMatrix().Rows - 1
	enc, err := NewEncoderFromParams(p, m.Config.HiddenDim)
	if err != nil {
		return err
	}
	emb, err := NewAssetEmbeddingFromParams(p, numAssets, m.Config.AssetEmbedDim)
	if err != nil {
		return err
	}
	den, err := NewEpsilonThetaFromParams(p, m.Config)
	if err != nil {
		return err
	}
	m.Encoder, m.Assets, m.Denoiser = enc, emb, den
	return nil
}

// Cond builds the conditioning vector concat(h, embed(assetID)) per the
// model's declared contract.
func (m *Model) Cond(context []float64, assetID int) *mat.VecDense {
	h := m.Encoder.Encode(context)
	a := m.Assets.Lookup(assetID)
	out := mat.NewVecDense(h.Len()+a.Len(), nil)
	for i := 0; i < h.Len(); i++ {
		out.SetVec(i, h.AtVec(i))
	}
	for i := 0; i < a.Len(); i++ {
		out.SetVec(h.Len()+i, a.AtVec(i))
	}
	return out
}

// PredictNoise runs the denoiser for one diffusion step.
func (m *Model) PredictNoise(xt []float64, t int, cond *mat.VecDense) []float64 {
	stepEmb := StepEmbedding(t, m.Config.HiddenDim)
	return m.Denoiser.Predict(xt, stepEmb, cond)
}

// Loss computes the mean squared error between the predicted and actual
// noise, mean-reduced over the horizon dimension — the training objective
// of §4.2, evaluated for one (x0, cond, t, eps) example.
func (m *Model) Loss(x0 []float64, cond *mat.VecDense, t int, eps []float64) float64 {
	xt := m.Schedule.Noise(x0, t, eps)
	predicted := m.PredictNoise(xt, t, cond)
	var sum float64
	for i := range eps {
		d := predicted[i] - eps[i]
		sum += d * d
	}
	return sum / float64(len(eps))
}
