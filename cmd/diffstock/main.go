// Command diffstock runs the control surface (C7) fronting the diffusion
// forecasting, portfolio optimization, and paper execution engines.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jimstein/diffstock/config"
	"github.com/jimstein/diffstock/control"
	"github.com/jimstein/diffstock/inference"
	"github.com/jimstein/diffstock/marketfeed"
	"github.com/jimstein/diffstock/paper"
	"github.com/jimstein/diffstock/trainer"
	"github.com/jimstein/diffstock/types"
)

func main() {
	cfg := config.Load()

	feed := marketfeed.NewAlpacaFeed(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey)

	infEngine := inference.New(feed)
	if ckpt, err := trainer.LoadCheckpoint(cfg.CheckpointPath); err == nil {
		if loadErr := infEngine.Load(ckpt); loadErr != nil {
			log.Printf("main: checkpoint at %s failed validation, starting with no loaded model: %v", cfg.CheckpointPath, loadErr)
		} else {
			log.Printf("main: loaded checkpoint %s", ckpt)
		}
	} else {
		log.Printf("main: no checkpoint at %s yet, starting with no loaded model: %v", cfg.CheckpointPath, err)
	}

	paperEngine := paper.New(feed)
	if f, err := paper.LoadStrategyFile(cfg.StrategyPath); err == nil {
		paperEngine.Load(f)
		log.Printf("main: restored paper strategy from %s", cfg.StrategyPath)
	}

	trainRunner := control.NewTrainRunner(feed, func(ckpt *types.Checkpoint) {
		if err := trainer.SaveCheckpointAtomic(cfg.CheckpointPath, ckpt); err != nil {
			log.Printf("main: failed to persist checkpoint: %v", err)
			return
		}
		if err := infEngine.Load(ckpt); err != nil {
			log.Printf("main: new checkpoint failed validation, keeping previous model loaded: %v", err)
		}
	})

	server := &control.Server{
		Inference:      infEngine,
		Paper:          paperEngine,
		Train:          trainRunner,
		Quotes:         feed,
		StrategyPath:   cfg.StrategyPath,
		CheckpointPath: cfg.CheckpointPath,
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go runScheduledRebalance(paperEngine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("main: control surface listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("main: http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("main: shutdown signal received, draining HTTP and stopping engines")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http shutdown: %v", err)
		}
		if file, err := paperEngine.Stop(); err == nil {
			if err := paper.SaveStrategyFile(cfg.StrategyPath, file); err != nil {
				log.Printf("main: failed to persist strategy file on shutdown: %v", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		log.Println("main: graceful shutdown complete")
	case <-secondSignal():
		log.Println("main: second signal received, forcing immediate exit without persisting state")
		os.Exit(1)
	}
}

// secondSignal returns a channel that fires once a second SIGINT/SIGTERM
// arrives during the shutdown drain, letting the operator force an
// immediate exit per the declared exit-behavior contract.
func secondSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// runScheduledRebalance drives the paper engine's T1/T2/optimization-window
// schedule: it sleeps until the next computed instant, runs one analysis
// pass, and repeats. A stopped or idle engine is simply skipped until the
// next tick.
func runScheduledRebalance(engine *paper.Engine) {
	for {
		status := engine.Status()
		if status.State != types.StateRunning {
			time.Sleep(30 * time.Second)
			continue
		}
		next, err := paper.NextRebalance(time.Now(), status.Schedule)
		if err != nil {
			time.Sleep(time.Minute)
			continue
		}
		sleepDur := time.Until(next)
		if sleepDur > 0 {
			time.Sleep(sleepDur)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := engine.RunAnalysisOnce(ctx, paper.DefaultFeeRate, true); err != nil {
			log.Printf("main: scheduled rebalance failed: %v", err)
		}
		cancel()
	}
}
