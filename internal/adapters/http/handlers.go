package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"accesspanel/internal/adapters/camera"
	"accesspanel/internal/adapters/storage/portrait"
	"accesspanel/internal/application/orchestrators"
	"accesspanel/internal/application/scan"
	accountDomain "accesspanel/internal/domain/account"
	memberDomain "accesspanel/internal/domain/member"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 64 << 10

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// errorBody is the JSON shape of every client-facing error.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps domain and application errors to HTTP statuses. Anything
// unrecognised is treated as an internal error.
func writeError(w http.ResponseWriter, err error) {
	var verr *orchestrators.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input", Fields: verr.Fields})
	case errors.Is(err, memberDomain.ErrNotFound), errors.Is(err, accountDomain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, scan.ErrScanInProgress),
		errors.Is(err, scan.ErrAutoScanActive),
		errors.Is(err, scan.ErrAutoScanStarting),
		errors.Is(err, orchestrators.ErrEmailAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, camera.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, camera.ErrDeviceUnavailable),
		errors.Is(err, camera.ErrInUse),
		errors.Is(err, scan.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, portrait.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
	case errors.Is(err, portrait.ErrUnsupportedType), errors.Is(err, portrait.ErrEmpty), errors.Is(err, orchestrators.ErrNoImage):
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: err.Error()})
	case errors.Is(err, orchestrators.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, orchestrators.ErrCurrentPasswordWrong):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, orchestrators.ErrAccountLocked):
		writeJSON(w, http.StatusLocked, errorBody{Error: err.Error()})
	case isDomainValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		internalError(w, err)
	}
}

var domainValidationErrors = []error{
	memberDomain.ErrNameTooShort,
	memberDomain.ErrNameTooLong,
	memberDomain.ErrMissingStartDate,
	memberDomain.ErrMissingEndDate,
	memberDomain.ErrEndBeforeStart,
	accountDomain.ErrInvalidEmail,
	accountDomain.ErrEmptyEmail,
	accountDomain.ErrEmailTooLong,
	accountDomain.ErrInvalidRole,
	accountDomain.ErrEmptyPassword,
	accountDomain.ErrPasswordTooShort,
}

func isDomainValidation(err error) bool {
	for _, target := range domainValidationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// handleHealthz handles GET /healthz
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if services != nil && services.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := services.DB.PingContext(ctx); err != nil {
			slog.Error("health_event", "event", "db_unreachable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAlerts handles GET /api/alerts
func handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	limit := queryInt(r, "limit", 20)
	writeJSON(w, http.StatusOK, map[string]any{"alerts": services.Alerts.Recent(limit)})
}

// handleStats handles GET /api/admin/stats
func handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	minutes := queryInt(r, "minutes", 15)
	body := map[string]any{}
	if perfCollector != nil {
		body["perf"] = perfCollector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), 10)
	}
	if services.Counters != nil {
		counters, err := services.Counters.Counters(r.Context())
		if err != nil {
			internalError(w, err)
			return
		}
		body["counters"] = counters
	}
	writeJSON(w, http.StatusOK, body)
}
