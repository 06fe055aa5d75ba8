package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/services"
)

// EventsHandler serves the audit log and its live stream.
type EventsHandler struct {
	*BaseHandler
	svc       *services.BountyService
	heartbeat time.Duration
}

// NewEventsHandler creates an events handler. heartbeat <= 0 disables
// keepalive events on the stream.
func NewEventsHandler(svc *services.BountyService, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{BaseHandler: NewBaseHandler(logger), svc: svc, heartbeat: heartbeat}
}

func eventFilter(r *http.Request) (bounty.EventFilter, error) {
	var f bounty.EventFilter
	var err error
	if f.BountyID, err = queryUint(r, "bounty_id"); err != nil {
		return f, err
	}
	if f.AfterSeq, err = queryUint(r, "after"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	return f, nil
}

// HandleList returns committed events in sequence order.
// @Summary List events
// @Tags Events
// @Produce json
// @Param bounty_id query int false "only events of this bounty"
// @Param after query int false "only events with a greater sequence number"
// @Param limit query int false "limit"
// @Success 200 {object} models.APIResponse
// @Router /api/events [get]
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := eventFilter(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	events, err := h.svc.Events(r.Context(), f)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, events)
}

// HandleStream serves committed events as server-sent events. With ?after=N
// the stored backlog past N is replayed before live events.
// @Summary Stream events
// @Tags Events
// @Produce text/event-stream
// @Param bounty_id query int false "only events of this bounty"
// @Param after query int false "replay stored events after this sequence number"
// @Router /api/events/stream [get]
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	f, err := eventFilter(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before reading the backlog so nothing committed in between is lost.
	live, cancel := h.svc.Hub().Subscribe(64)
	defer cancel()

	ctx := r.Context()
	var backlog []bounty.Event
	if r.URL.Query().Has("after") {
		if backlog, err = h.svc.Events(ctx, f); err != nil {
			h.sendError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": stream online %s\n\n", time.Now().UTC().Format(time.RFC3339))
	flusher.Flush()

	last := f.AfterSeq
	for _, evt := range backlog {
		if err := writeSSEEvent(w, evt); err != nil {
			return
		}
		last = evt.Seq
	}
	flusher.Flush()

	var heartbeat <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-live:
			if !ok {
				return
			}
			if f.BountyID != 0 && evt.BountyID != f.BountyID {
				continue
			}
			// already sent as backlog
			if evt.Seq != 0 && evt.Seq <= last {
				continue
			}
			if err := writeSSEEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
		case t := <-heartbeat:
			if _, err := fmt.Fprintf(w, ": heartbeat %s\n\n", t.UTC().Format(time.RFC3339)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt bounty.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if evt.Seq != 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", evt.Seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", evt.Kind); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
