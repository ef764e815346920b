package control

import (
	"net/http"
	"time"

	"github.com/jimstein/diffstock/paper"
	"github.com/jimstein/diffstock/types"
	"github.com/shopspring/decimal"
)

type targetWeight struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

type paperStartRequest struct {
	Targets              []targetWeight `json:"targets"`
	InitialCapital       float64        `json:"initial_capital"`
	Time1                string         `json:"time1"`
	Time2                string         `json:"time2"`
	OptimizationTime     string         `json:"optimization_time"`
	OptimizationWeekdays []int          `json:"optimization_weekdays"` // 0=Sunday .. 6=Saturday
	BenchmarkSymbol      string         `json:"benchmark_symbol"`
}

func toTargetMap(targets []targetWeight) map[string]float64 {
	out := make(map[string]float64, len(targets))
	for _, t := range targets {
		out[t.Symbol] = t.Weight
	}
	return out
}

func toWeekdays(days []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}

func (s *Server) handlePaperStart(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req paperStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	schedule := types.Schedule{
		Time1: req.Time1, Time2: req.Time2,
		OptimizationTime: req.OptimizationTime, OptimizationWeekdays: toWeekdays(req.OptimizationWeekdays),
	}
	if err := s.Paper.Start(toTargetMap(req.Targets), decimal.NewFromFloat(req.InitialCapital), schedule); err != nil {
		writeError(w, err)
		return
	}
	if req.BenchmarkSymbol != "" {
		s.Paper.SetBenchmarkSymbol(req.BenchmarkSymbol)
	}
	writeOK(w)
}

func (s *Server) handlePaperPause(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.Paper.Pause(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handlePaperResume(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.Paper.Resume(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handlePaperStop(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, err := s.Paper.Stop()
	if err != nil {
		writeError(w, err)
		return
	}
	if saveErr := paper.SaveStrategyFile(s.StrategyPath, file); saveErr != nil {
		// The engine has already transitioned to Stopped and stays there;
		// the save error is returned as is and the save is not retried.
		writeError(w, saveErr)
		return
	}
	writeOK(w)
}

type paperLoadRequest struct {
	StrategyFile string `json:"strategy_file"` // path to a persisted strategy file
}

// handlePaperLoad reads and validates the strategy file named by the
// request before touching the engine at all: a corrupt file (e.g. missing
// holdings, scenario S6) is rejected as BadInput with the engine left in
// its prior state.
func (s *Server) handlePaperLoad(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req paperLoadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	file, err := paper.LoadStrategyFile(req.StrategyFile)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Paper.Load(file)
	writeOK(w)
}

type paperTargetsRequest struct {
	Symbols  []targetWeight `json:"symbols"`
	ApplyNow bool           `json:"apply_now"`
}

func (s *Server) handlePaperTargets(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req paperTargetsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Paper.SetTargets(toTargetMap(req.Symbols), req.ApplyNow); err != nil {
		writeError(w, err)
		return
	}
	if req.ApplyNow {
		if err := s.Paper.RunAnalysisOnce(r.Context(), paper.DefaultFeeRate, true); err != nil {
			writeError(w, err)
			return
		}
	}
	writeOK(w)
}

func (s *Server) handlePaperStatus(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "GET") {
		return
	}
	if !methodAllowed(r.Method, http.MethodGet) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Paper.Status())
}

type paperOptimizationRequest struct {
	OptimizationTime     string `json:"optimization_time"`
	OptimizationWeekdays []int  `json:"optimization_weekdays"`
}

// handlePaperOptimization updates only the weekly optimization window,
// leaving the daily T1/T2 times and running targets untouched.
func (s *Server) handlePaperOptimization(w http.ResponseWriter, r *http.Request) {
	if !withCommonHeaders(w, r, "POST") {
		return
	}
	if !methodAllowed(r.Method, http.MethodPost) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req paperOptimizationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status := s.Paper.Status()
	schedule := status.Schedule
	schedule.OptimizationTime = req.OptimizationTime
	schedule.OptimizationWeekdays = toWeekdays(req.OptimizationWeekdays)
	if err := s.Paper.SetSchedule(schedule); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}
