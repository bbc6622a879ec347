package browser_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"accesspanel/internal/adapters/camera"
	web "accesspanel/internal/adapters/http"
	"accesspanel/internal/adapters/http/perf"
	"accesspanel/internal/adapters/notify"
	"accesspanel/internal/adapters/storage"
	accountStore "accesspanel/internal/adapters/storage/account"
	memberStore "accesspanel/internal/adapters/storage/member"
	"accesspanel/internal/adapters/storage/portrait"
	"accesspanel/internal/application/orchestrators"
	"accesspanel/internal/application/scan"
)

const (
	adminEmail    = "admin@test.com"
	adminPassword = "TestPass123!"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	Stores  *web.Stores
}

// newTestApp creates a fully wired app with a temp SQLite DB and starts an HTTP server.
// The test is skipped when the Playwright driver or browsers are not installed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := storage.InitDB(db, storage.DialectSQLite); err != nil {
		t.Fatalf("failed to initialize test DB: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, storage.DialectSQLite, collector)
	portraits, err := portrait.NewDiskStore(filepath.Join(tmpDir, "portraits"))
	if err != nil {
		t.Fatalf("failed to create portrait store: %v", err)
	}
	stores := &web.Stores{
		AccountStore: accountStore.NewSQLiteStore(timedDB),
		MemberStore:  memberStore.NewSQLiteStore(timedDB),
		Portraits:    portraits,
	}

	ctx := context.Background()
	if err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore}, adminEmail, adminPassword); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	cam := camera.NewSimulated()
	feed := notify.NewFeed(notify.DefaultFeedSize)
	scanner := scan.New(scan.Config{
		ReadDelay:        200 * time.Millisecond,
		VerifyDelay:      300 * time.Millisecond,
		AutoScanInterval: time.Second,
	}, scan.Deps{Members: stores.MemberStore, Camera: cam, Notifier: feed})

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	app, err := web.NewMux(web.Config{
		StaticDir:          filepath.Join(findProjectRoot(t), "static"),
		TrustedOrigins:     []string{fmt.Sprintf("127.0.0.1:%d", port), fmt.Sprintf("localhost:%d", port)},
		RateLimitPerSecond: 500,
	}, stores, &web.Services{
		Scanner:  scanner,
		Camera:   cam,
		Alerts:   feed,
		Notifier: feed,
		DB:       timedDB,
	}, collector)
	if err != nil {
		t.Fatalf("failed to build mux: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: app.Handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		srv.Close()
		scanner.Close()
		db.Close()
		t.Skipf("playwright driver not installed: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		srv.Close()
		scanner.Close()
		db.Close()
		t.Skipf("chromium not available: %v", err)
	}

	ta := &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		Stores:  stores,
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		scanner.Close()
		db.Close()
	})

	return ta
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login opens the kiosk page and signs in as admin.
func (a *testApp) login(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/"); err != nil {
		t.Fatalf("failed to navigate to kiosk: %v", err)
	}
	if err := page.Locator("#login-form input[name=email]").Fill(adminEmail); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("#login-form input[name=password]").Fill(adminPassword); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("#login-form button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click sign in: %v", err)
	}
	waitVisible(t, page, "#members-panel")
}

// seedMember registers a member directly through the orchestrator.
func (a *testApp) seedMember(t *testing.T, name, start, end string) {
	t.Helper()
	_, err := orchestrators.ExecuteRegisterMember(context.Background(), orchestrators.RegisterMemberInput{
		FullName: name, StartDate: start, EndDate: end,
	}, orchestrators.RegisterMemberDeps{MemberStore: a.Stores.MemberStore})
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
}

func waitVisible(t *testing.T, page playwright.Page, selector string) {
	t.Helper()
	if err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("%s never became visible: %v", selector, err)
	}
}

func textOf(t *testing.T, page playwright.Page, selector string) string {
	t.Helper()
	text, err := page.Locator(selector).First().TextContent()
	if err != nil {
		t.Fatalf("failed to read %s: %v", selector, err)
	}
	return strings.TrimSpace(text)
}

// findProjectRoot walks up from the working directory to find the project root (contains go.mod).
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (go.mod) from working directory")
		}
		dir = parent
	}
}
