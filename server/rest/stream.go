package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/clipforge/clipforge/server/internal/registry"
)

// pollInterval is how often a live progress connection re-reads task
// state. Observation is pull-based: a late joiner starts at the current
// snapshot, never at past ones.
const pollInterval = 500 * time.Millisecond

type progressEvent struct {
	Status     registry.Status `json:"status"`
	Progress   float64         `json:"progress"`
	Speed      string          `json:"speed"`
	ETA        string          `json:"eta"`
	Size       string          `json:"size"`
	Downloaded string          `json:"downloaded"`
	Phase      string          `json:"phase"`
	Error      string          `json:"error,omitempty"`
	FileName   string          `json:"file_name,omitempty"`
	FileSize   int64           `json:"file_size,omitempty"`
}

func snapshotEvent(t registry.Task) progressEvent {
	ev := progressEvent{
		Status:     t.Status,
		Progress:   t.Progress,
		Speed:      t.Speed,
		ETA:        t.ETA,
		Size:       t.Size,
		Downloaded: t.Downloaded,
		Phase:      t.Phase,
	}

	switch t.Status {
	case registry.StatusDone:
		ev.FileName = t.FileName
		ev.FileSize = t.FileSize
	case registry.StatusError:
		ev.Error = t.Error
	}

	return ev
}

var notFoundEvent = progressEvent{
	Status: registry.StatusError,
	Error:  ErrTaskNotFound.Error(),
}

// ProgressSSE streams task snapshots as Server-Sent Events until a
// terminal state is observed.
func (h *Handler) ProgressSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")

	id := chi.URLParam(r, "id")

	send := func(ev progressEvent) {
		data, _ := json.Marshal(ev)
		w.Write([]byte("data: "))
		w.Write(data)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		t, ok := h.service.Snapshot(id)
		if !ok {
			send(notFoundEvent)
			return
		}

		send(snapshotEvent(t))

		if t.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

var upgrader = websocket.Upgrader{
	// same policy as the permissive CORS middleware on the REST routes
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressWS streams the same snapshots over a WebSocket for collaborators
// that prefer it to SSE.
func (h *Handler) ProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	id := chi.URLParam(r, "id")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		t, ok := h.service.Snapshot(id)
		if !ok {
			conn.WriteJSON(notFoundEvent)
			return
		}

		if err := conn.WriteJSON(snapshotEvent(t)); err != nil {
			return
		}

		if t.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
