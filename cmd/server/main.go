package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"accesspanel/internal/adapters/camera"
	emailPkg "accesspanel/internal/adapters/email"
	web "accesspanel/internal/adapters/http"
	"accesspanel/internal/adapters/http/perf"
	"accesspanel/internal/adapters/notify"
	"accesspanel/internal/adapters/storage"
	accountStore "accesspanel/internal/adapters/storage/account"
	memberStore "accesspanel/internal/adapters/storage/member"
	"accesspanel/internal/adapters/storage/portrait"
	"accesspanel/internal/adapters/telemetry"
	"accesspanel/internal/application/orchestrators"
	"accesspanel/internal/application/scan"
	"accesspanel/internal/domain/member"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: could not read .env: %v", err)
	}

	env := envOrDefault("ACCESSPANEL_ENV", "development")
	production := env == "production"
	configureLogging(production)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  "accesspanel",
		Environment:  env,
		OTLPEndpoint: os.Getenv("ACCESSPANEL_OTLP_ENDPOINT"),
	})
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}

	db, dialect, err := openDatabase()
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db, dialect); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}
	log.Printf("Database initialized (%s)", dialect)

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, dialect, collector)

	acctStore := accountStore.NewSQLiteStore(timedDB)
	members := memberStore.NewSQLiteStore(timedDB)
	portraits, err := portrait.NewDiskStore(envOrDefault("ACCESSPANEL_PORTRAIT_DIR", "data/portraits"))
	if err != nil {
		log.Fatalf("failed to open portrait directory: %v", err)
	}

	// Seed default admin account if no accounts exist
	adminEmail := envOrDefault("ACCESSPANEL_ADMIN_EMAIL", "admin@accesspanel.local")
	adminPassword := os.Getenv("ACCESSPANEL_ADMIN_PASSWORD")
	if adminPassword == "" {
		if production {
			log.Fatal("ACCESSPANEL_ADMIN_PASSWORD is required in production")
		}
		adminPassword = "change-me-front-desk"
	}
	seedDeps := orchestrators.CreateAccountDeps{AccountStore: acctStore}
	if err := orchestrators.ExecuteSeedAdmin(ctx, seedDeps, adminEmail, adminPassword); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}

	// Alerts: in-process feed for the kiosk, email for the front desk inbox
	feed := notify.NewFeed(notify.DefaultFeedSize)
	notifiers := notify.Multi{feed}
	if to := splitList(os.Getenv("ACCESSPANEL_ALERT_EMAIL")); len(to) > 0 {
		notifiers = append(notifiers, notify.NewEmailNotifier(newEmailSender(production), to))
	}

	cam := camera.Open(os.Getenv("ACCESSPANEL_CAMERA_DEVICE"))

	cfg := scan.DefaultConfig()
	cfg.ReadDelay = envDuration("ACCESSPANEL_READ_DELAY_MS", cfg.ReadDelay, 0)
	cfg.VerifyDelay = envDuration("ACCESSPANEL_VERIFY_DELAY_MS", cfg.VerifyDelay, 0)
	cfg.AutoScanInterval = envDuration("ACCESSPANEL_AUTO_SCAN_INTERVAL_MS", cfg.AutoScanInterval, time.Millisecond)

	scanner := scan.New(cfg, scan.Deps{
		Members: scan.MemberSourceFunc(func(ctx context.Context) ([]member.Member, error) {
			defer collector.RecordSince(perf.KindScan, "scan.fetch", time.Now())
			return members.ListAll(ctx)
		}),
		Camera:   cam,
		Notifier: notifiers,
	})

	srv, err := web.NewMux(web.Config{
		StaticDir:          envOrDefault("ACCESSPANEL_STATIC_DIR", "static"),
		CSRFKeyHex:         os.Getenv("ACCESSPANEL_CSRF_KEY"),
		Production:         production,
		TrustedOrigins:     splitList(os.Getenv("ACCESSPANEL_TRUSTED_ORIGINS")),
		RateLimitPerSecond: envFloat("ACCESSPANEL_RATE_LIMIT_PER_SECOND", 10),
	}, &web.Stores{
		AccountStore: acctStore,
		MemberStore:  members,
		Portraits:    portraits,
	}, &web.Services{
		Scanner:  scanner,
		Camera:   cam,
		Alerts:   feed,
		Notifier: notifiers,
		Counters: tel,
		DB:       timedDB,
	}, collector)
	if err != nil {
		log.Fatalf("failed to build HTTP surface: %v", err)
	}
	go srv.Run(ctx)

	addr := envOrDefault("ACCESSPANEL_ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Access panel %s starting on %s (env=%s)", version, addr, env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := scanner.Close(); err != nil {
		slog.Error("shutdown_event", "event", "scanner_close_failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown_event", "event", "http_shutdown_failed", "error", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown_event", "event", "telemetry_shutdown_failed", "error", err)
	}
}

// openDatabase picks Postgres when ACCESSPANEL_DATABASE_URL is set and the
// embedded SQLite file otherwise.
func openDatabase() (*sql.DB, storage.Dialect, error) {
	if url := os.Getenv("ACCESSPANEL_DATABASE_URL"); url != "" {
		db, err := sql.Open(storage.DialectPostgres.DriverName(), url)
		if err != nil {
			return nil, "", err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
		return db, storage.DialectPostgres, nil
	}

	// WAL mode, busy timeout and foreign keys per DB_GUIDE
	dbPath := envOrDefault("ACCESSPANEL_DB_PATH", "accesspanel.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open(storage.DialectSQLite.DriverName(), dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	return db, storage.DialectSQLite, nil
}

func newEmailSender(production bool) emailPkg.Sender {
	resendKey := os.Getenv("ACCESSPANEL_RESEND_KEY")
	from := envOrDefault("ACCESSPANEL_RESEND_FROM", "Access Panel <alerts@accesspanel.local>")
	if resendKey != "" {
		log.Println("Email sender configured (Resend)")
		return emailPkg.NewResendSender(resendKey, from)
	}
	if production {
		log.Println("WARNING: ACCESSPANEL_RESEND_KEY is not set; alert emails are DISABLED")
	} else {
		log.Println("Email sender configured (noop; set ACCESSPANEL_RESEND_KEY for real delivery)")
	}
	return emailPkg.NewNoopSender()
}

func configureLogging(production bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("ACCESSPANEL_DEBUG") != "" {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if production {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envDuration reads a millisecond setting. Values below floor are ignored.
func envDuration(key string, fallback, floor time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || time.Duration(ms)*time.Millisecond < floor {
		log.Printf("WARNING: ignoring %s=%q (want milliseconds >= %d)", key, v, floor.Milliseconds())
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("WARNING: ignoring %s=%q", key, v)
		return fallback
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
