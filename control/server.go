// Package control implements the HTTP/JSON command surface of §4.7: every
// route maps to exactly one state-machine transition on one engine, CORS
// headers and method checks follow the same shape on every handler, and
// writes are serialized per engine by that engine's own mutex.
package control

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jimstein/diffstock/inference"
	"github.com/jimstein/diffstock/paper"
	"github.com/jimstein/diffstock/portfolio"
	"github.com/jimstein/diffstock/trainer"
	"github.com/jimstein/diffstock/types"
)

// Server bundles the three engines plus the quote/history adapters the
// control surface needs to fulfil requests that are not themselves
// delegated entirely to an engine (e.g. /api/quotes, /api/portfolio).
type Server struct {
	Inference *inference.Engine
	Paper     *paper.Engine
	Train     *TrainRunner
	Quotes    types.QuoteStream

	StrategyPath   string
	CheckpointPath string
}

// RegisterRoutes wires every path of §6's table onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/forecast/batch", s.handleForecastBatch)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)

	mux.HandleFunc("/api/paper/start", s.handlePaperStart)
	mux.HandleFunc("/api/paper/pause", s.handlePaperPause)
	mux.HandleFunc("/api/paper/resume", s.handlePaperResume)
	mux.HandleFunc("/api/paper/stop", s.handlePaperStop)
	mux.HandleFunc("/api/paper/load", s.handlePaperLoad)
	mux.HandleFunc("/api/paper/targets", s.handlePaperTargets)
	mux.HandleFunc("/api/paper/status", s.handlePaperStatus)
	mux.HandleFunc("/api/paper/optimization", s.handlePaperOptimization)

	mux.HandleFunc("/api/quotes", s.handleQuotes)

	mux.HandleFunc("/api/train/start", s.handleTrainStart)
	mux.HandleFunc("/api/train/status", s.handleTrainStatus)

	mux.HandleFunc("/api/state", s.handleState)

	mux.HandleFunc("/api/stream", s.handleStream)
}

// withCommonHeaders sets the JSON content type and permissive CORS used
// across the whole surface, and handles the OPTIONS preflight for the given
// allowed methods. Returns false if the caller should stop processing
// (OPTIONS already answered, or the method was rejected).
func withCommonHeaders(w http.ResponseWriter, r *http.Request, allowed string) bool {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", allowed+", OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return false
	}
	return true
}

func methodAllowed(method, want string) bool { return method == want }

func writeOK(w http.ResponseWriter) {
	if err := json.NewEncoder(w).Encode(map[string]bool{"ok": true}); err != nil {
		log.Printf("control: encoding ok response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("control: encoding response: %v", err)
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.NewBadInput("control: invalid request body: %v", err)
	}
	return nil
}

// --- Forecast ---

type forecastRequest struct {
	Symbol      string `json:"symbol"`
	Horizon     int    `json:"horizon"`
	Simulations int    `json:"simulations"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req forecastRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, _, err := s.Inference.Forecast(r.Context(), inference.Request{
		Symbol: req.Symbol, Horizon: req.Horizon, NumPaths: req.Simulations, Seed: 1,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

type forecastBatchRequest struct {
	Symbols     []string `json:"symbols"`
	Horizon     int      `json:"horizon"`
	Simulations int      `json:"simulations"`
}

// handleForecastBatch runs one forecast per symbol independently; a failure
// on one symbol does not abort the others, matching the "independent
// forecasts" contract in §6.
func (s *Server) handleForecastBatch(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req forecastBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	results := make([]types.ForecastResult, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		result, _, err := s.Inference.Forecast(r.Context(), inference.Request{
			Symbol: sym, Horizon: req.Horizon, NumPaths: req.Simulations, Seed: 1,
		})
		if err != nil {
			log.Printf("control: forecast batch: symbol %s failed: %v", sym, err)
			continue
		}
		results = append(results, result)
	}
	writeJSON(w, results)
}

// --- Portfolio ---

type portfolioRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req portfolioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	forecasts := make([]types.AssetForecast, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		_, forecast, err := s.Inference.Forecast(r.Context(), inference.Request{
			Symbol: sym, Horizon: 0, NumPaths: types.DefaultOptimizerSamples, Seed: 1,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		forecasts = append(forecasts, forecast)
	}
	allocation, err := portfolio.Optimize(forecasts, portfolio.DefaultParams())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, allocation)
}

// --- Quotes ---

type quotesRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req quotesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	prices, err := s.Quotes.LatestPrices(r.Context(), req.Symbols)
	if err != nil {
		writeError(w, err)
		return
	}
	exchangeTs := make(map[string]int64, len(prices))
	now := nowMillis()
	for sym := range prices {
		exchangeTs[sym] = now
	}
	writeJSON(w, map[string]interface{}{"prices": prices, "exchange_ts_ms": exchangeTs})
}

// --- Train ---

type trainStartRequest struct {
	Epochs       int      `json:"epochs"`
	BatchSize    int      `json:"batch_size"`
	LearningRate float64  `json:"learning_rate"`
	Patience     int      `json:"patience"`
	Symbols      []string `json:"symbols"`
}

func (s *Server) handleTrainStart(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req trainStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cfg := trainer.DefaultConfig()
	if req.Epochs > 0 {
		cfg.Epochs = req.Epochs
	}
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}
	if req.LearningRate > 0 {
		cfg.LearningRate = req.LearningRate
	}
	if req.Patience > 0 {
		cfg.Patience = req.Patience
	}
	if len(req.Symbols) > 0 {
		cfg.Symbols = req.Symbols
	}
	cfg.CheckpointPath = s.CheckpointPath

	if err := s.Train.Start(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleTrainStatus(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "GET") {
		return
	}
	if !methodAllowed(r.Method, http.MethodGet) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Train.Status())
}

// --- State ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "GET") {
		return
	}
	if !methodAllowed(r.Method, http.MethodGet) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"training": s.Train.Status(),
		"paper":    s.Paper.Status(),
	})
}
