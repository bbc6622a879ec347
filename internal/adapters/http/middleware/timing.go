package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"accesspanel/internal/adapters/http/perf"
)

// DefaultSlowRequest is the threshold above which a request logs at WARN.
const DefaultSlowRequest = 200 * time.Millisecond

// staticPattern is the catch-all file server route. Asset fetches are not timed.
const staticPattern = "/"

// RouteMatcher resolves a request to the pattern that will serve it.
// *http.ServeMux satisfies it.
type RouteMatcher interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// SlowRequestThreshold reads ACCESSPANEL_SLOW_REQUEST_MS, falling back to
// DefaultSlowRequest when unset or not a positive integer.
func SlowRequestThreshold() time.Duration {
	if v := os.Getenv("ACCESSPANEL_SLOW_REQUEST_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return DefaultSlowRequest
}

var requestIDCounter uint64

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(p)
	sw.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Timing returns middleware that times each request and records it under
// "METHOD pattern", so /api/members/{id} is one series rather than one per
// member. Routes resolve through routes; with nil routes the raw path is used.
// Static assets and event streams are not timed.
func Timing(collector *perf.Collector, routes RouteMatcher) func(http.Handler) http.Handler {
	threshold := SlowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") == "text/event-stream" {
				next.ServeHTTP(w, r)
				return
			}
			route := r.URL.Path
			if routes != nil {
				if _, pattern := routes.Handler(r); pattern != "" {
					route = pattern
				}
			}
			if route == staticPattern {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := atomic.AddUint64(&requestIDCounter, 1)
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				elapsed := time.Since(start)
				level := slog.LevelDebug
				msg := "request"
				if elapsed >= threshold {
					level, msg = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, msg,
					"request_id", reqID,
					"method", r.Method,
					"route", route,
					"path", r.URL.Path,
					"status", sw.status,
					"bytes", sw.bytes,
					"duration_ms", float64(elapsed.Microseconds())/1000.0,
				)
				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       r.Method + " " + route,
						StatusCode: sw.status,
						DurationMs: float64(elapsed.Microseconds()) / 1000.0,
						Timestamp:  start,
					})
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
