package control

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestStreamPushesPaperEvents confirms a websocket client connected to
// /api/stream receives the started event emitted by Paper.Start, without
// ever needing to send a frame itself.
func TestStreamPushesPaperEvents(t *testing.T) {
	_, mux := newMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	rec := postJSON(t, mux, "/api/paper/start", map[string]interface{}{
		"targets":         []map[string]interface{}{{"symbol": "AAA", "weight": 1.0}},
		"initial_capital": 10000,
		"time1":           "09:00",
		"time2":           "15:00",
	})
	if rec.Code != 200 {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame streamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Kind != "paper_event" {
		t.Errorf("frame.Kind = %q, want paper_event", frame.Kind)
	}
}
