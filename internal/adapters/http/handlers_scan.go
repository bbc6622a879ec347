package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// sseKeepAlive is how often an idle event stream gets a comment line.
const sseKeepAlive = 25 * time.Second

// handleScanState handles GET /api/scan
func handleScanState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, services.Scanner.Snapshot())
}

// handleScanTrigger handles POST /api/scan/trigger
func handleScanTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := services.Scanner.TriggerScan(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, services.Scanner.Snapshot())
}

// handleScanReset handles POST /api/scan/reset
func handleScanReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := services.Scanner.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.Scanner.Snapshot())
}

// handleScanAuto handles POST /api/scan/auto
func handleScanAuto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	on, err := services.Scanner.ToggleAutoScan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"autoScan": on})
}

// handleScanEvents handles GET /api/scan/events as a server-sent event stream.
// Each event carries one snapshot; slow clients skip to the latest.
func handleScanEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("sse_event", "event", "flush_unsupported", "error", err)
		return
	}

	updates, stop := services.Scanner.Subscribe()
	defer stop()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				slog.Error("sse_event", "event", "encode_failed", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: scan\ndata: %s\n\n", data); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
