package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seistech/quakefeed/internal/adapter/ws"
	"github.com/seistech/quakefeed/internal/domain"
	"github.com/seistech/quakefeed/internal/domain/catalog"
	"github.com/seistech/quakefeed/internal/domain/replay"
	"github.com/seistech/quakefeed/internal/protocol"
	"github.com/seistech/quakefeed/internal/service"
)

// Handlers serves the read-only REST mirrors of the feed state. Everything
// here is idempotent and reads either immutable data (the queue, the event
// summaries) or lock-free snapshots (cursor, connection count), so none of
// it goes through the sequencer's mailbox.
type Handlers struct {
	seq    *service.Sequencer
	queue  *replay.Queue
	events []catalog.Summary
	hub    *ws.Hub
}

// NewHandlers creates the REST handler set.
func NewHandlers(seq *service.Sequencer, queue *replay.Queue, events []catalog.Summary, hub *ws.Hub) *Handlers {
	return &Handlers{seq: seq, queue: queue, events: events, hub: hub}
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListEvents mirrors the list_events frame.
func (h *Handlers) ListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.NewEventList(h.events))
}

// GetEventBulletins returns the staged bulletins for one event, wrapped the
// same way they appear on the wire.
func (h *Handlers) GetEventBulletins(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	entries := h.queue.ByEvent(id)
	if len(entries) == 0 {
		writeDomainError(w, fmt.Errorf("event %d: %w", id, domain.ErrNotFound), "event not found")
		return
	}

	bulletins := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		bulletins = append(bulletins, protocol.WrapBulletin(string(e.Kind), e.Payload))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":  id,
		"bulletins": bulletins,
	})
}

// Status mirrors the status frame.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.NewStatus(h.seq.Cursor(), h.seq.QueueLen(), h.hub.ConnectionCount()))
}
