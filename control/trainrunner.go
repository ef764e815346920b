package control

import (
	"context"
	"sync"

	"github.com/jimstein/diffstock/trainer"
	"github.com/jimstein/diffstock/types"
)

// TrainRunner wraps trainer.Trainer with the background-goroutine lifecycle
// the control surface needs: Start launches a run and returns immediately,
// Status reads the latest reported state lock-free from the caller's
// perspective (a copy under a mutex), and the resulting checkpoint is
// persisted atomically by the trainer itself.
type TrainRunner struct {
	mu           sync.Mutex
	source       types.OHLCVSource
	running      bool
	latest       types.TrainingStatus
	cancel       context.CancelFunc
	onCheckpoint func(*types.Checkpoint)
}

func NewTrainRunner(source types.OHLCVSource, onCheckpoint func(*types.Checkpoint)) *TrainRunner {
	return &TrainRunner{source: source, latest: types.TrainingStatus{State: types.StateIdle}, onCheckpoint: onCheckpoint}
}

// Start begins a training run in the background. Returns Conflict if a run
// is already in progress.
func (r *TrainRunner) Start(cfg trainer.Config) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return types.NewConflict("train: cannot start, a run is already in progress")
	}
	r.running = true
	r.latest = types.TrainingStatus{State: types.StateRunning, TotalEpochs: cfg.Epochs, LearningRate: cfg.LearningRate}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	tr := trainer.New(cfg, r.source)
	go r.drainStatus(tr.Status)
	go r.run(ctx, tr)
	return nil
}

func (r *TrainRunner) run(ctx context.Context, tr *trainer.Trainer) {
	ckpt, err := tr.Run(ctx)
	r.mu.Lock()
	r.running = false
	if err != nil {
		r.latest.State = types.StateStopped
		r.latest.Error = err.Error()
	} else {
		r.latest.State = types.StateStopped
		r.latest.Error = ""
		if ckpt != nil {
			r.latest.BestValLoss = ckpt.BestValLoss
			r.latest.Epoch = ckpt.Epoch
		}
	}
	r.mu.Unlock()
	if err == nil && ckpt != nil && r.onCheckpoint != nil {
		r.onCheckpoint(ckpt)
	}
}

func (r *TrainRunner) drainStatus(ch <-chan types.TrainingStatus) {
	for s := range ch {
		r.mu.Lock()
		if r.running {
			r.latest = s
		}
		r.mu.Unlock()
	}
}

func (r *TrainRunner) Status() types.TrainingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Stop cancels an in-progress run at its next suspension point; already
// committed epochs are not rolled back.
func (r *TrainRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
