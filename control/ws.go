package control

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const streamPingInterval = 20 * time.Second

// streamFrame is one pushed message on the /api/stream websocket: exactly
// one of Training, PaperEvent, or PaperSnapshot is set, mirroring the
// one-kind-at-a-time shape of paper.Event.
type streamFrame struct {
	Kind          string      `json:"kind"`
	Training      interface{} `json:"training,omitempty"`
	PaperEvent    interface{} `json:"paper_event,omitempty"`
	PaperSnapshot interface{} `json:"paper_snapshot,omitempty"`
}

// handleStream upgrades to a websocket and pushes training status, paper
// engine events, and minute-cadence paper snapshots as they occur. Client
// frames are read only to detect disconnect and are otherwise discarded;
// this is a push-only status channel, not a command surface — commands
// remain POST/GET per §6.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("control: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	writeMu := make(chan struct{}, 1)
	writeMu <- struct{}{}
	write := func(frame streamFrame) bool {
		<-writeMu
		defer func() { writeMu <- struct{}{} }()
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			return false
		}
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	paperEvents := s.Paper.Events()
	paperSnapshots := s.Paper.Snapshots()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !write(streamFrame{Kind: "training", Training: s.Train.Status()}) {
				return
			}
		case ev, ok := <-paperEvents:
			if !ok {
				paperEvents = nil
				continue
			}
			if !write(streamFrame{Kind: "paper_event", PaperEvent: ev}) {
				return
			}
		case snap, ok := <-paperSnapshots:
			if !ok {
				paperSnapshots = nil
				continue
			}
			if !write(streamFrame{Kind: "paper_snapshot", PaperSnapshot: snap}) {
				return
			}
		}
	}
}
