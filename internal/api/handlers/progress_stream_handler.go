package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
)

// ProgressStreamHandler streams enrichment progress as Server-Sent Events.
// The running process is polled and a progress event is sent whenever it
// changes; the stream ends with a done event once nothing is running.
type ProgressStreamHandler struct {
	progress  ProgressReader
	poll      time.Duration
	heartbeat time.Duration
}

// NewProgressStreamHandler creates a new progress stream handler
func NewProgressStreamHandler(progress ProgressReader, poll time.Duration) *ProgressStreamHandler {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &ProgressStreamHandler{progress: progress, poll: poll, heartbeat: 30 * time.Second}
}

// StreamCompanyProgress handles GET /api/v0/companies/{id}/refresh-progress/stream
func (h *ProgressStreamHandler) StreamCompanyProgress(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, entities.EntityKindCompany)
}

// StreamContactProgress handles GET /api/v0/contacts/{id}/refresh-progress/stream
func (h *ProgressStreamHandler) StreamContactProgress(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, entities.EntityKindContact)
}

func (h *ProgressStreamHandler) stream(w http.ResponseWriter, r *http.Request, kind entities.EntityKind) {
	id, err := pathID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	logger := observability.ComponentLogger(ctx, "progress_stream")
	logger.Debug().Str("kind", string(kind)).Int64("id", id).Msg("progress stream opened")

	poll := time.NewTicker(h.poll)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	var last *entities.RunningProcessData
	for {
		current := h.progress.RunningProcess(ctx, kind, id)
		if current == nil {
			h.sendEvent(w, "done", map[string]interface{}{
				"last_refreshed_at": h.progress.LastRefreshTime(ctx, kind, id),
			})
			flusher.Flush()
			return
		}
		if last == nil || !reflect.DeepEqual(*last, *current) {
			h.sendEvent(w, "progress", current)
			flusher.Flush()
			last = current
		}

		if !h.wait(ctx, w, flusher, poll, heartbeat) {
			logger.Debug().Str("kind", string(kind)).Int64("id", id).Msg("progress stream closed by client")
			return
		}
	}
}

// wait blocks until the next poll, sending heartbeats meanwhile. It returns
// false once the client is gone.
func (h *ProgressStreamHandler) wait(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, poll, heartbeat *time.Ticker) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-poll.C:
			return true
		case <-heartbeat.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()})
			flusher.Flush()
		}
	}
}

func (h *ProgressStreamHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
