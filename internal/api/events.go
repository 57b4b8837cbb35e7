package api

import (
	"fmt"
	"net/http"

	"github.com/stratodrive/stratodrive/internal/events"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

// handleEvents streams hierarchy change events over SSE. Non-admin
// callers only receive events for their own items.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if !caller.CanActOn(event.OwnerID) {
				continue
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
