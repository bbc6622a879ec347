package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"accesspanel/internal/adapters/camera"
	"accesspanel/internal/adapters/http/middleware"
	"accesspanel/internal/adapters/http/perf"
	"accesspanel/internal/adapters/notify"
	accountStore "accesspanel/internal/adapters/storage/account"
	memberStore "accesspanel/internal/adapters/storage/member"
	"accesspanel/internal/adapters/storage/portrait"
	"accesspanel/internal/application/orchestrators"
	"accesspanel/internal/application/scan"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore accountStore.Store
	MemberStore  memberStore.Store
	Portraits    *portrait.DiskStore
}

// CounterSource reports the in-process metric counters.
type CounterSource interface {
	Counters(ctx context.Context) (map[string]int64, error)
}

// Pinger checks database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services holds the long-lived collaborators behind the scan and alert routes.
type Services struct {
	Scanner  *scan.Controller
	Camera   camera.Camera
	Alerts   *notify.Feed
	Notifier orchestrators.Notifier
	Counters CounterSource
	DB       Pinger
}

// Config carries the HTTP surface's settings.
type Config struct {
	StaticDir          string
	CSRFKeyHex         string // 64 hex chars; random per start when empty outside production
	Production         bool
	TrustedOrigins     []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	SessionTTL         time.Duration
}

// loadCSRFKey decodes the CSRF secret (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey(keyHex string, production bool) ([]byte, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, errors.New("ACCESSPANEL_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key, nil
	}
	if production {
		return nil, errors.New("ACCESSPANEL_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("config_event", "event", "random_csrf_key", "hint", "set ACCESSPANEL_CSRF_KEY for production")
	return key, nil
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global services instance (set by NewMux)
var services *Services

// Global session store instance
var sessions *middleware.SessionStore

// secureCookies marks cookies Secure outside development.
var secureCookies bool

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Server is the wired HTTP surface.
type Server struct {
	Handler http.Handler
	limiter *middleware.RateLimiter
}

// Run evicts idle rate-limit buckets until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.limiter.Run(ctx)
}

// NewMux wires HTTP handlers for the app.
func NewMux(cfg Config, s *Stores, svc *Services, collector *perf.Collector) (*Server, error) {
	csrfKey, err := loadCSRFKey(cfg.CSRFKeyHex, cfg.Production)
	if err != nil {
		return nil, err
	}

	stores = s
	services = svc
	perfCollector = collector
	sessions = middleware.NewSessionStore(cfg.SessionTTL)
	secureCookies = cfg.Production

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	registerRoutes(mux)

	perSecond := cfg.RateLimitPerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = int(perSecond) * 2
	}
	limiter := middleware.NewRateLimiter(perSecond, burst)

	// Outer to inner: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	handler := middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, cfg.TrustedOrigins, cfg.Production),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(collector, mux),
	)
	return &Server{Handler: handler, limiter: limiter}, nil
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", handleHealthz)

	mux.HandleFunc("/api/scan", handleScanState)
	mux.HandleFunc("/api/scan/events", handleScanEvents)
	mux.HandleFunc("/api/scan/trigger", handleScanTrigger)
	mux.HandleFunc("/api/scan/reset", handleScanReset)
	mux.Handle("/api/scan/auto", middleware.RequireAuth(http.HandlerFunc(handleScanAuto)))
	mux.HandleFunc("/api/alerts", handleAlerts)

	mux.Handle("/api/members", middleware.RequireAuth(http.HandlerFunc(handleMembers)))
	mux.Handle("/api/members/{id}", middleware.RequireAuth(http.HandlerFunc(handleMember)))
	mux.Handle("/api/members/{id}/portrait", middleware.RequireAuth(http.HandlerFunc(handlePortraitUpload)))
	mux.Handle("/api/members/{id}/portrait/capture", middleware.RequireAuth(http.HandlerFunc(handlePortraitCapture)))
	mux.HandleFunc(portrait.URLPrefix, handlePortraitFile)

	mux.HandleFunc("/api/login", handleLogin)
	mux.HandleFunc("/api/logout", handleLogout)
	mux.HandleFunc("/api/session", handleSession)
	mux.Handle("/api/session/password", middleware.RequireAuth(http.HandlerFunc(handleChangePassword)))
	mux.HandleFunc("/api/csrf", handleCSRFToken)

	mux.Handle("/api/admin/accounts", middleware.RequireRole("admin")(http.HandlerFunc(handleAccounts)))
	mux.Handle("/api/admin/stats", middleware.RequireRole("admin")(http.HandlerFunc(handleStats)))
}
