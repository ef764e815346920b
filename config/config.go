// Package config loads deployment settings from flags and environment
// variables, following the same .env-then-flags-override-env pattern the
// rest of the stack uses for its Alpaca credentials.
package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = "8080"
	defaultSymbols        = "AAPL,MSFT,GOOGL,AMZN,NVDA"
	defaultComputeBackend = "cpu"
	defaultCheckpointPath = "checkpoint.json"
	defaultStrategyPath   = "strategy.json"
)

// ComputeBackend is the closed set accepted for model execution placement.
type ComputeBackend string

const (
	BackendAuto        ComputeBackend = "auto"
	BackendCPU         ComputeBackend = "cpu"
	BackendGPU         ComputeBackend = "gpu"
	BackendAccelerator ComputeBackend = "accelerator"
)

// Config holds the settings Load reads: port, symbol universe, compute
// backend selection, Alpaca credentials and paper/live choice, the websocket
// RTH-only flag, and the checkpoint (model file) and strategy file paths.
// There is no data-provider setting.
type Config struct {
	Port            string
	Symbols         []string
	ComputeBackend  ComputeBackend
	AlpacaAPIKey    string
	AlpacaSecretKey string
	UsePaperTrading bool
	RTHOnly         bool
	CheckpointPath  string
	StrategyPath    string
}

// Load reads a .env file if present, then flags, then environment
// variables, with flags taking precedence — matching the teacher's
// override order for Alpaca credentials.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file found, relying on process environment: %v", err)
	}

	port := flag.String("port", defaultPort, "port for the control surface HTTP server")
	symbols := flag.String("symbols", defaultSymbols, "comma-separated training/forecast universe")
	backend := flag.String("compute-backend", defaultComputeBackend, "auto|cpu|gpu|accelerator")
	usePaper := flag.Bool("paper", true, "use paper trading Alpaca credentials")
	rthOnly := flag.Bool("rth-only", false, "restrict the websocket feed to regular trading hours")
	checkpointPath := flag.String("checkpoint", defaultCheckpointPath, "model checkpoint file path")
	strategyPath := flag.String("strategy", defaultStrategyPath, "paper trading strategy file path")
	alpacaKey := flag.String("alpaca-key", "", "Alpaca API key (overrides env var)")
	alpacaSecret := flag.String("alpaca-secret", "", "Alpaca secret key (overrides env var)")
	flag.Parse()

	apiKey := *alpacaKey
	secretKey := *alpacaSecret
	if *usePaper {
		if apiKey == "" {
			apiKey = os.Getenv("PAPER_ALPACA_API_KEY")
		}
		if secretKey == "" {
			secretKey = os.Getenv("PAPER_ALPACA_SECRET_KEY")
		}
	} else {
		if apiKey == "" {
			apiKey = os.Getenv("LIVE_ALPACA_API_KEY")
		}
		if secretKey == "" {
			secretKey = os.Getenv("LIVE_ALPACA_SECRET_KEY")
		}
	}

	return Config{
		Port:            *port,
		Symbols:         splitSymbols(*symbols),
		ComputeBackend:  parseBackend(*backend),
		AlpacaAPIKey:    apiKey,
		AlpacaSecretKey: secretKey,
		UsePaperTrading: *usePaper,
		RTHOnly:         *rthOnly,
		CheckpointPath:  *checkpointPath,
		StrategyPath:    *strategyPath,
	}
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBackend(s string) ComputeBackend {
	switch ComputeBackend(strings.ToLower(s)) {
	case BackendCPU, BackendGPU, BackendAccelerator, BackendAuto:
		return ComputeBackend(strings.ToLower(s))
	default:
		log.Printf("config: unrecognized compute backend %q, defaulting to cpu", s)
		return BackendCPU
	}
}

// ParseBool is a small env-var helper used by callers reading boolean flags
// out of raw environment strings rather than the flag package.
func ParseBool(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}
