package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"collegia.org/internal/access"
)

// handleAuditFeed streams audit events to the caller as server-sent events.
func (a *API) handleAuditFeed(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "audit feed unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if !allow(actx, access.ResourceAuditFeed, access.ActionRead) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := a.feed.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: audit\ndata: %s\n\n", ev.ID, data)
			flusher.Flush()
		}
	}
}
