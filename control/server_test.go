package control

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jimstein/diffstock/diffusion"
	"github.com/jimstein/diffstock/inference"
	"github.com/jimstein/diffstock/marketfeed"
	"github.com/jimstein/diffstock/paper"
	"github.com/jimstein/diffstock/types"
)

func syntheticCloses(n int, start float64) []float64 {
	closes := make([]float64, n)
	closes[0] = start
	rng := rand.New(rand.NewSource(7))
	for i := 1; i < n; i++ {
		closes[i] = closes[i-1] * (1 + 0.0005*rng.NormFloat64())
	}
	return closes
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := types.DefaultDiffusionConfig()
	cfg.ContextLength = 20
	cfg.Horizon = 3
	cfg.NumSteps = 8

	symbols := []string{"AAA", "BBB", "CCC", "DDD"}
	registry := types.NewAssetRegistryFromSymbols(symbols)
	rng := rand.New(rand.NewSource(42))
	model := diffusion.NewRandomModel(cfg, registry.Size(), func() float64 { return rng.NormFloat64() * 0.05 })
	ckpt := model.ToCheckpoint(registry, 0.1, 1)

	feed := marketfeed.NewFixtureFeed()
	base := time.Now().AddDate(-1, 0, 0)
	for _, sym := range symbols {
		bars := make([]types.Bar, 80)
		closes := syntheticCloses(80, 100)
		for i, c := range closes {
			bars[i] = types.Bar{Timestamp: base.AddDate(0, 0, i), Close: c}
		}
		feed.SetSeries(sym, types.SymbolSeries{Symbol: sym, Bars: bars})
		feed.SetQuote(sym, closes[len(closes)-1])
	}

	infEngine := inference.New(feed)
	if err := infEngine.Load(ckpt); err != nil {
		t.Fatalf("Load checkpoint: %v", err)
	}

	paperEngine := paper.New(feed)
	trainRunner := NewTrainRunner(feed, nil)

	return &Server{
		Inference:      infEngine,
		Paper:          paperEngine,
		Train:          trainRunner,
		Quotes:         feed,
		StrategyPath:   t.TempDir() + "/strategy.json",
		CheckpointPath: t.TempDir() + "/checkpoint.json",
	}
}

func newMux(t *testing.T) (*Server, *http.ServeMux) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s, mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleForecastHappyPath(t *testing.T) {
	_, mux := newMux(t)
	rec := postJSON(t, mux, "/api/forecast", map[string]interface{}{
		"symbol": "AAA", "horizon": 3, "simulations": 100,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result types.ForecastResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.P50) == 0 {
		t.Error("expected non-empty P50 band")
	}
}

func TestHandleForecastRejectsTooFewPaths(t *testing.T) {
	_, mux := newMux(t)
	rec := postJSON(t, mux, "/api/forecast", map[string]interface{}{
		"symbol": "AAA", "horizon": 3, "simulations": 5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePortfolioHappyPath(t *testing.T) {
	_, mux := newMux(t)
	rec := postJSON(t, mux, "/api/portfolio", map[string]interface{}{
		"symbols": []string{"AAA", "BBB", "CCC", "DDD"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var alloc types.PortfolioAllocation
	if err := json.Unmarshal(rec.Body.Bytes(), &alloc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if alloc.Sum() < 0.98 {
		t.Errorf("weights sum = %v, want ~1", alloc.Sum())
	}
}

func TestHandleQuotes(t *testing.T) {
	_, mux := newMux(t)
	rec := postJSON(t, mux, "/api/quotes", map[string]interface{}{"symbols": []string{"AAA"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPaperLifecycleOverHTTP(t *testing.T) {
	_, mux := newMux(t)
	rec := postJSON(t, mux, "/api/paper/start", map[string]interface{}{
		"targets":         []map[string]interface{}{{"symbol": "AAA", "weight": 1.0}},
		"initial_capital": 10000,
		"time1":           "09:00",
		"time2":           "15:00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, mux, "/api/paper/start", map[string]interface{}{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double-start status = %d, want 409", rec.Code)
	}

	rec = getJSON(t, mux, "/api/paper/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}

	rec = postJSON(t, mux, "/api/paper/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

// TestHandlePaperLoadRejectsMissingHoldingsS6 implements scenario S6 over
// the HTTP surface: loading a strategy file missing holdings returns
// BadInput and leaves the engine state untouched.
func TestHandlePaperLoadRejectsMissingHoldingsS6(t *testing.T) {
	s, mux := newMux(t)
	dir := t.TempDir()
	path := dir + "/corrupt.json"
	corrupt := `{"initial_capital":"1000","cash_usd":"1000","target_weights":{"AAA":1.0},"schedule":{"time1":"09:00","time2":"15:00"}}`
	if err := os.WriteFile(path, []byte(corrupt), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	before := s.Paper.Status()

	rec := postJSON(t, mux, "/api/paper/load", map[string]string{"strategy_file": path})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}

	after := s.Paper.Status()
	if after.State != before.State {
		t.Errorf("engine state changed: %v -> %v", before.State, after.State)
	}
}
