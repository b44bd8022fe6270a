package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"edgeplace/internal/model"
	"edgeplace/internal/progress"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

// ProgressHandler streams a run's progress events over a websocket. The first
// message is a run.snapshot of the stored run; the stream ends after the
// terminal event. Finished runs get the snapshot and the terminal event only.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// subscribe before reading the run so a finish in between is not missed
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	write := func(evt progress.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt)
	}

	summary := run
	summary.Results = nil
	if err := write(progress.Event{Type: "run.snapshot", RunID: id, At: time.Now().UTC(), Data: map[string]any{
		"run": summary, "results": len(run.Results),
	}}); err != nil {
		return
	}
	if run.Status != model.RunStatusRunning {
		_ = write(terminalEvent(run))
		closeNormal(conn)
		return
	}

	// Read loop only services pongs and notices the client going away
	closed := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
			if evt.Terminal() {
				closeNormal(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			// a slow reader may have missed the terminal event
			if cur, err := s.Store.GetRun(r.Context(), id); err == nil && cur.Status != model.RunStatusRunning {
				_ = write(terminalEvent(cur))
				closeNormal(conn)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func terminalEvent(run model.Run) progress.Event {
	evt := progress.Event{Type: progress.EventRunCompleted, RunID: run.ID, At: time.Now().UTC(),
		Data: map[string]any{"results": len(run.Results)}}
	if run.Status == model.RunStatusFailed {
		evt.Type = progress.EventRunFailed
		evt.Data = map[string]any{"error": run.Error}
	}
	return evt
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
}
