package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sergeknystautas/landed/internal/api/contracts"
)

const (
	wsRequestTimeout = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

// Event types sent on /ws/inclusion/{name}.
const (
	EventResult = "result"
	EventDone   = "done"
	EventError  = "error"
)

// handleInclusionWebSocket streams one inclusion check. The client sends a
// single {branch, targets} message; the server answers with a "result" event
// per target as it completes, then "done" with the ordered results, or
// "error", and closes.
func (s *Server) handleInclusionWebSocket(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("name")
	if project == "" {
		http.Error(w, "project name is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	batchID := uuid.New().String()[:8]

	conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		fmt.Printf("[ws %s] read error: %v\n", batchID, err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	send := func(ev contracts.InclusionEvent) error {
		ev.BatchID = batchID
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(ev)
	}

	var req contracts.InclusionRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		send(contracts.InclusionEvent{Type: EventError, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The connection is done once the client goes away; stop probing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_, engine := s.current()
	resp, err := engine.CheckNotify(ctx, project, req.Branch, req.Targets, func(i int, res contracts.InclusionResult) {
		if err := send(contracts.InclusionEvent{Type: EventResult, Index: i, Result: &res}); err != nil {
			cancel()
		}
	})
	if err != nil {
		send(contracts.InclusionEvent{Type: EventError, Error: err.Error()})
		return
	}

	send(contracts.InclusionEvent{Type: EventDone, Results: resp.Results})
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
