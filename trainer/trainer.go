package trainer

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jimstein/diffstock/diffusion"
	"github.com/jimstein/diffstock/types"
)

// Config holds the training hyperparameters accepted from /api/train/start.
type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Patience     int
	Seed         int64
	Symbols      []string
	ContextLen   int
	Horizon      int
	HistoryYears int
	CheckpointPath string
}

// DefaultConfig mirrors the declared defaults: five years of daily history,
// whole-epoch batching over a modest diffusion model.
func DefaultConfig() Config {
	return Config{
		Epochs: 50, BatchSize: 32, LearningRate: 1e-3, Patience: 5,
		Seed: 1, ContextLen: 64, Horizon: 10, HistoryYears: 5,
		CheckpointPath: "checkpoint.json",
	}
}

// Trainer owns the mutable ModelParameters during a training run and
// reports per-epoch status over Status, matching the declared channel-based
// status-reporting contract.
type Trainer struct {
	cfg    Config
	source types.OHLCVSource
	Status chan types.TrainingStatus
}

func New(cfg Config, source types.OHLCVSource) *Trainer {
	return &Trainer{cfg: cfg, source: source, Status: make(chan types.TrainingStatus, 16)}
}

// Run executes the full algorithm of §4.3: build the registry, fetch and
// slice per-symbol series into examples, purge-split train/val, then train
// with early stopping, returning the best checkpoint observed.
func (tr *Trainer) Run(ctx context.Context) (*types.Checkpoint, error) {
	start := time.Now()
	registry := types.NewAssetRegistryFromSymbols(tr.cfg.Symbols)

	var all []Example
	end := time.Now()
	begin := end.AddDate(-tr.cfg.HistoryYears, 0, 0)
	for _, symbol := range tr.cfg.Symbols {
		series, err := fetchWithBackoff(ctx, tr.source, symbol, begin, end)
		if err != nil {
			return nil, err
		}
		assetID := registry.Lookup(symbol)
		examples := BuildExamples(series, assetID, tr.cfg.ContextLen, tr.cfg.Horizon)
		all = append(all, examples...)
	}
	if len(all) == 0 {
		return nil, types.NewBadInput("trainer: no usable training examples for symbols %v", tr.cfg.Symbols)
	}

	trainSet, valSet := PurgedSplit(all, 0.8, tr.cfg.Horizon)
	if len(trainSet) == 0 || len(valSet) == 0 {
		return nil, types.NewBadInput("trainer: purged split left an empty train or validation set")
	}

	cfg := types.DefaultDiffusionConfig()
	cfg.ContextLength = tr.cfg.ContextLen
	cfg.Horizon = tr.cfg.Horizon

	rng := rand.New(rand.NewSource(tr.cfg.Seed))
	initFn := func() float64 { return rng.NormFloat64() * 0.05 }
	model := diffusion.NewRandomModel(cfg, registry.Size(), initFn)

	opt := NewAdamOptimizer(tr.cfg.LearningRate)

	bestValLoss := math.Inf(1)
	var best *types.Checkpoint
	patienceLeft := tr.cfg.Patience

	for epoch := 1; epoch <= tr.cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return best, types.NewTransient(ctx.Err(), "trainer: cancelled at epoch %d", epoch)
		default:
		}

		shuffled := append([]Example(nil), trainSet...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		var trainLoss float64
		batches := 0
		for b := 0; b < len(shuffled); b += tr.cfg.BatchSize {
			batchEnd := b + tr.cfg.BatchSize
			if batchEnd > len(shuffled) {
				batchEnd = len(shuffled)
			}
			batch := shuffled[b:batchEnd]
			sampler := func() (int, []float64) {
				t := 1 + rng.Intn(cfg.NumSteps)
				eps := make([]float64, cfg.Horizon)
				for i := range eps {
					eps[i] = rng.NormFloat64()
				}
				return t, eps
			}
			loss := opt.Step(model, func() float64 { return BatchLoss(model, batch, sampler) })
			trainLoss += loss
			batches++
		}
		if batches > 0 {
			trainLoss /= float64(batches)
		}

		valSampler := func() (int, []float64) {
			t := 1 + rng.Intn(cfg.NumSteps)
			eps := make([]float64, cfg.Horizon)
			for i := range eps {
				eps[i] = rng.NormFloat64()
			}
			return t, eps
		}
		valLoss := BatchLoss(model, valSet, valSampler)

		improved := valLoss < bestValLoss
		if improved {
			bestValLoss = valLoss
			best = model.ToCheckpoint(registry, bestValLoss, epoch)
			if err := SaveCheckpointAtomic(tr.cfg.CheckpointPath, best); err != nil {
				tr.emit(types.TrainingStatus{State: types.StateRunning, Epoch: epoch, TotalEpochs: tr.cfg.Epochs,
					TrainLoss: trainLoss, ValLoss: valLoss, BestValLoss: bestValLoss,
					LearningRate: tr.cfg.LearningRate, ElapsedSecs: time.Since(start).Seconds(),
					Error: err.Error()})
			}
			patienceLeft = tr.cfg.Patience
		} else {
			patienceLeft--
		}

		tr.emit(types.TrainingStatus{
			State: types.StateRunning, Epoch: epoch, TotalEpochs: tr.cfg.Epochs,
			TrainLoss: trainLoss, ValLoss: valLoss, BestValLoss: bestValLoss,
			LearningRate: tr.cfg.LearningRate, ElapsedSecs: time.Since(start).Seconds(),
		})

		if patienceLeft <= 0 {
			break
		}
	}

	if best == nil {
		return nil, types.NewFatal(nil, "trainer: no checkpoint produced any improvement")
	}
	return best, nil
}

func (tr *Trainer) emit(s types.TrainingStatus) {
	select {
	case tr.Status <- s:
	default:
	}
}

func fetchWithBackoff(ctx context.Context, source types.OHLCVSource, symbol string, start, end time.Time) (types.SymbolSeries, error) {
	const maxAttempts = 4
	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		series, err := source.FetchRange(ctx, symbol, start, end)
		if err == nil {
			return series, nil
		}
		if types.KindOf(err) != types.Transient {
			return types.SymbolSeries{}, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return types.SymbolSeries{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return types.SymbolSeries{}, types.NewTransient(lastErr, "trainer: exhausted retry budget fetching %s", symbol)
}
