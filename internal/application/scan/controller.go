// Package scan runs the access panel's scan flow: trigger, fetch, pick,
// classify, verify, plus the optional auto-scan loop that holds the camera.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"accesspanel/internal/adapters/camera"
	"accesspanel/internal/domain/alert"
	"accesspanel/internal/domain/kiosk"
	"accesspanel/internal/domain/member"
)

// Errors returned by controller operations.
var (
	ErrScanInProgress   = errors.New("a scan is already in progress")
	ErrAutoScanActive   = errors.New("auto-scan is active")
	ErrAutoScanStarting = errors.New("auto-scan is starting or stopping")
	ErrClosed           = errors.New("scan controller is closed")
)

// Outcome labels for the scans counter.
const (
	outcomeSuccess = "success"
	outcomeFetch   = "fetch_failure"
	outcomeEmpty   = "empty_member_set"
)

// MemberSource lists the members a scan may match.
type MemberSource interface {
	ListAll(ctx context.Context) ([]member.Member, error)
}

// MemberSourceFunc adapts a function to MemberSource.
type MemberSourceFunc func(ctx context.Context) ([]member.Member, error)

// ListAll calls f.
func (f MemberSourceFunc) ListAll(ctx context.Context) ([]member.Member, error) {
	return f(ctx)
}

// Camera is held for as long as auto-scan runs.
type Camera interface {
	Acquire(ctx context.Context) (camera.Handle, error)
	Release(h camera.Handle) error
}

// Notifier receives the alerts raised by the flow.
type Notifier interface {
	Notify(ctx context.Context, a alert.Alert)
}

// Config holds the flow's timings.
type Config struct {
	ReadDelay        time.Duration // simulated sensor read before the fetch
	VerifyDelay      time.Duration // success -> verified
	AutoScanInterval time.Duration
}

// DefaultConfig returns the panel's standard timings.
func DefaultConfig() Config {
	return Config{
		ReadDelay:        2000 * time.Millisecond,
		VerifyDelay:      1500 * time.Millisecond,
		AutoScanInterval: 5000 * time.Millisecond,
	}
}

// Deps are the controller's collaborators. Pick and Now default to a
// uniform random index and time.Now.
type Deps struct {
	Members  MemberSource
	Camera   Camera
	Notifier Notifier
	Pick     func(n int) int
	Now      func() time.Time
}

// Snapshot is the state the presentation layer renders.
type Snapshot struct {
	Status        kiosk.Status            `json:"status"`
	Prompt        string                  `json:"prompt"`
	Member        *member.Member          `json:"member,omitempty"`
	Membership    member.MembershipStatus `json:"membership,omitempty"`
	DaysRemaining int                     `json:"daysRemaining"`
	Message       string                  `json:"message"`
	AutoScan      bool                    `json:"autoScan"`
	Session       *kiosk.Session          `json:"session,omitempty"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// waitingMessage is shown while nobody is selected.
const waitingMessage = "Waiting for scan..."

var tracer = otel.Tracer("accesspanel/scan")

// Controller owns the scan state machine. All methods are safe for
// concurrent use. Results of a scan that has been superseded by a reset,
// a new scan, or teardown are dropped.
type Controller struct {
	cfg      Config
	members  MemberSource
	camera   Camera
	notifier Notifier
	pick     func(n int) int
	now      func() time.Time
	scans    metric.Int64Counter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	status      kiosk.Status
	selected    *member.Member
	membership  member.MembershipStatus
	days        int
	updatedAt   time.Time
	gen         uint64
	scanCancel  context.CancelFunc
	verifyTimer *time.Timer
	closed      bool

	auto       bool
	starting   bool
	stopping   bool // camera release after auto-scan off is still pending
	session    *kiosk.Session
	handle     camera.Handle
	autoCancel context.CancelFunc
	autoDone   chan struct{}

	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an idle controller. A non-positive AutoScanInterval falls back
// to the default.
// PRE: deps.Members and deps.Notifier are non-nil; deps.Camera is non-nil if auto-scan is used
// POST: status idle, nothing selected, auto-scan off
func New(cfg Config, deps Deps) *Controller {
	if cfg.AutoScanInterval <= 0 {
		slog.Warn("scan_event", "event", "auto_scan_interval_defaulted", "configured", cfg.AutoScanInterval.String())
		cfg.AutoScanInterval = DefaultConfig().AutoScanInterval
	}
	if deps.Pick == nil {
		deps.Pick = rand.IntN
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	scans, err := otel.Meter("accesspanel/scan").Int64Counter("accesspanel.scans",
		metric.WithDescription("Completed scans by outcome"))
	if err != nil {
		slog.Error("scan_metric_init_failed", "error", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:       cfg,
		members:   deps.Members,
		camera:    deps.Camera,
		notifier:  deps.Notifier,
		pick:      deps.Pick,
		now:       deps.Now,
		scans:     scans,
		ctx:       ctx,
		cancel:    cancel,
		status:    kiosk.StatusIdle,
		updatedAt: deps.Now(),
		subs:      make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// TriggerScan starts a scan.
// PRE: status is idle, error, or verified; auto-scan is off
// POST: status scanning, selection cleared; the result lands asynchronously
func (c *Controller) TriggerScan(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.auto || c.starting:
		return ErrAutoScanActive
	case !c.status.CanTrigger():
		return ErrScanInProgress
	}
	c.startScanLocked(trace.LinkFromContext(ctx))
	slog.Info("scan_event", "event", "scan_triggered", "source", "manual")
	return nil
}

// Reset returns the panel to idle and discards any pending verify.
// PRE: status is not scanning
// POST: status idle, selection cleared
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.status == kiosk.StatusIdle:
		return nil
	case !c.status.CanReset():
		return ErrScanInProgress
	}
	c.gen++
	c.stopVerifyLocked()
	c.toIdleLocked()
	c.publishLocked()
	slog.Info("scan_event", "event", "scan_reset")
	return nil
}

// ToggleAutoScan turns auto-scan on or off and returns the new setting.
// Turning it on acquires the camera, scans at once and then on every
// interval. Turning it off stops the loop before returning, cancels any
// scan in flight, releases the camera, and leaves the panel idle.
func (c *Controller) ToggleAutoScan(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.starting || c.stopping {
		c.mu.Unlock()
		return false, ErrAutoScanStarting
	}
	if c.auto {
		c.stopAutoLocked() // unlocks
		return false, nil
	}
	c.starting = true
	c.mu.Unlock()

	h, err := c.camera.Acquire(ctx)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.raiseCameraAlert(ctx, err)
		return false, err
	}
	if c.closed {
		c.mu.Unlock()
		c.releaseCamera(h)
		return false, ErrClosed
	}

	session := &kiosk.Session{ID: uuid.NewString(), StartedAt: c.now()}
	if err := session.Validate(); err != nil {
		c.mu.Unlock()
		c.releaseCamera(h)
		return false, err
	}

	c.auto = true
	c.handle = h
	c.session = session
	loopCtx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.autoCancel = cancel
	c.autoDone = done
	c.wg.Add(1)
	go c.runAuto(loopCtx, done)

	if c.status.CanTrigger() {
		c.session.Tick()
		c.startScanLocked(trace.LinkFromContext(ctx))
	} else {
		c.publishLocked()
	}
	slog.Info("scan_event", "event", "auto_scan_started", "session_id", c.session.ID, "device", h.Device)
	c.mu.Unlock()
	return true, nil
}

// stopAutoLocked turns auto-scan off. It is entered with mu held and
// returns with mu released, after the loop has exited.
func (c *Controller) stopAutoLocked() {
	c.auto = false
	c.gen++
	if c.scanCancel != nil {
		c.scanCancel()
		c.scanCancel = nil
	}
	c.stopVerifyLocked()
	cancel, done, h := c.autoCancel, c.autoDone, c.handle
	c.autoCancel, c.autoDone, c.handle = nil, nil, camera.Handle{}
	session := c.session
	c.endSessionLocked()
	c.session = nil
	c.stopping = true
	c.toIdleLocked()
	c.publishLocked()
	c.mu.Unlock()

	cancel()
	<-done
	c.releaseCamera(h)

	c.mu.Lock()
	c.stopping = false
	c.mu.Unlock()
	if session != nil {
		slog.Info("scan_event", "event", "auto_scan_stopped", "session_id", session.ID, "ticks", session.Ticks)
	}
}

// Subscribe returns a stream of snapshots starting with the current one.
// Slow readers only see the latest state. Call the returned func to stop.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close stops timers and loops, releases the camera, and ends all
// subscriptions. It is safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	if c.scanCancel != nil {
		c.scanCancel()
		c.scanCancel = nil
	}
	c.stopVerifyLocked()
	hadAuto, h := c.auto, c.handle
	c.auto = false
	c.handle = camera.Handle{}
	c.endSessionLocked()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	if hadAuto {
		c.releaseCamera(h)
	}
	for _, ch := range subs {
		close(ch)
	}
	slog.Info("scan_event", "event", "controller_closed")
	return nil
}

// startScanLocked moves to scanning and launches the read/fetch goroutine.
func (c *Controller) startScanLocked(link trace.Link) {
	if !c.setStatusLocked(kiosk.StatusScanning) {
		return
	}
	c.gen++
	gen := c.gen
	c.stopVerifyLocked()
	c.clearSelectionLocked()

	scanCtx, cancel := context.WithCancel(c.ctx)
	c.scanCancel = cancel
	c.wg.Add(1)
	go c.runScan(scanCtx, cancel, gen, link)
	c.publishLocked()
}

func (c *Controller) runScan(ctx context.Context, cancel context.CancelFunc, gen uint64, link trace.Link) {
	defer c.wg.Done()
	defer cancel()

	ctx, span := tracer.Start(ctx, "scan.run",
		trace.WithLinks(link),
		trace.WithAttributes(attribute.Int64("scan.generation", int64(gen))),
	)
	defer span.End()

	read := time.NewTimer(c.cfg.ReadDelay)
	select {
	case <-ctx.Done():
		read.Stop()
		span.SetAttributes(attribute.Bool("scan.cancelled", true))
		return
	case <-read.C:
	}

	members, err := c.members.ListAll(ctx)
	if ctx.Err() != nil {
		span.SetAttributes(attribute.Bool("scan.cancelled", true))
		return
	}

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		span.SetAttributes(attribute.Bool("scan.stale", true))
		return
	}
	c.scanCancel = nil
	today := c.now()
	next := kiosk.StatusSuccess
	if err != nil || len(members) == 0 {
		next = kiosk.StatusError
	}
	if !c.setStatusLocked(next) {
		c.mu.Unlock()
		return
	}

	var alerts []alert.Alert
	var outcome string
	switch {
	case err != nil:
		outcome = outcomeFetch
		c.clearSelectionLocked()
		alerts = append(alerts, alert.New(alert.KindFetchFailure,
			"Scan failed", "Could not load members. Check the connection and try again."))
		span.RecordError(err)
		span.SetStatus(codes.Error, "member fetch failed")
	case len(members) == 0:
		outcome = outcomeEmpty
		c.clearSelectionLocked()
		alerts = append(alerts, alert.New(alert.KindEmptyMemberSet,
			"No members registered", "Register a member before scanning."))
	default:
		outcome = outcomeSuccess
		idx := c.pick(len(members))
		if idx < 0 || idx >= len(members) {
			idx = 0
		}
		m := members[idx]
		c.selected = &m
		c.days = member.DaysRemaining(m.EndDate, today)
		c.membership = member.Classify(m.EndDate, today)
		c.verifyTimer = time.AfterFunc(c.cfg.VerifyDelay, func() { c.verify(gen) })
		alerts = append(alerts, c.memberAlerts(m)...)
		span.SetAttributes(
			attribute.String("member.id", m.ID),
			attribute.String("member.membership", string(c.membership)),
		)
	}
	membership := c.membership
	c.publishLocked()
	c.mu.Unlock()

	if c.scans != nil {
		c.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if err != nil {
		slog.Warn("scan_event", "event", "scan_failed", "reason", outcome, "error", err.Error())
	} else if outcome == outcomeSuccess {
		slog.Info("scan_event", "event", "scan_succeeded", "member_id", alerts[0].MemberID, "membership", string(membership))
	} else {
		slog.Warn("scan_event", "event", "scan_failed", "reason", outcome)
	}
	for _, a := range alerts {
		c.notifier.Notify(ctx, a)
	}
}

// memberAlerts builds the success toast and any membership warning.
func (c *Controller) memberAlerts(m member.Member) []alert.Alert {
	ok := alert.New(alert.KindScanSuccess, "Access verified", m.FullName)
	ok.MemberID = m.ID
	out := []alert.Alert{ok}

	msg := member.StatusMessage(c.membership, c.days)
	switch c.membership {
	case member.StatusExpiring:
		a := alert.New(alert.KindMembershipExpiring, "Membership expiring", m.FullName+": "+msg)
		a.MemberID = m.ID
		out = append(out, a)
	case member.StatusExpired:
		a := alert.New(alert.KindMembershipExpired, "Membership expired", m.FullName+": "+msg)
		a.MemberID = m.ID
		out = append(out, a)
	}
	return out
}

// verify fires once per successful scan unless superseded.
func (c *Controller) verify(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != gen {
		return
	}
	c.verifyTimer = nil
	if c.setStatusLocked(kiosk.StatusVerified) {
		c.publishLocked()
	}
}

func (c *Controller) runAuto(ctx context.Context, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)
	ticker := time.NewTicker(c.cfg.AutoScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick starts a scan unless one is in flight or still on screen.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.auto || ctx.Err() != nil {
		return
	}
	if c.status.Busy() {
		slog.Debug("scan_event", "event", "auto_tick_skipped", "status", string(c.status))
		return
	}
	c.session.Tick()
	c.startScanLocked(trace.Link{})
}

func (c *Controller) raiseCameraAlert(ctx context.Context, err error) {
	var a alert.Alert
	if errors.Is(err, camera.ErrPermissionDenied) {
		a = alert.New(alert.KindCameraDenied, "Camera access denied",
			"Allow camera access for this panel to use auto-scan.")
	} else {
		a = alert.New(alert.KindCameraUnavailable, "Camera unavailable",
			"The camera could not be opened. Auto-scan stays off.")
	}
	slog.Warn("scan_event", "event", "camera_acquire_failed", "kind", string(a.Kind), "error", err.Error())
	c.notifier.Notify(ctx, a)
}

func (c *Controller) releaseCamera(h camera.Handle) {
	if h.ID == "" {
		return
	}
	if err := c.camera.Release(h); err != nil {
		slog.Error("scan_event", "event", "camera_release_failed", "error", err.Error())
	}
}

func (c *Controller) stopVerifyLocked() {
	if c.verifyTimer != nil {
		c.verifyTimer.Stop()
		c.verifyTimer = nil
	}
}

func (c *Controller) clearSelectionLocked() {
	c.selected = nil
	c.membership = ""
	c.days = 0
}

func (c *Controller) toIdleLocked() {
	if c.status != kiosk.StatusIdle {
		c.setStatusLocked(kiosk.StatusIdle)
	}
	c.clearSelectionLocked()
}

// setStatusLocked applies a move allowed by the kiosk transition table and
// reports whether it did. Disallowed moves leave the state untouched.
func (c *Controller) setStatusLocked(next kiosk.Status) bool {
	if !next.Valid() || !kiosk.CanTransition(c.status, next) {
		slog.Error("scan_event", "event", "transition_rejected", "from", string(c.status), "to", string(next))
		return false
	}
	c.status = next
	c.updatedAt = c.now()
	return true
}

// endSessionLocked closes the auto-scan session if one is open. A session
// that already ended is logged and left as is.
func (c *Controller) endSessionLocked() {
	if c.session == nil {
		return
	}
	if err := c.session.End(c.now()); err != nil {
		slog.Warn("scan_event", "event", "session_end_failed", "session_id", c.session.ID, "error", err.Error())
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:    c.status,
		Prompt:    c.status.Prompt(),
		Message:   waitingMessage,
		AutoScan:  c.auto,
		UpdatedAt: c.updatedAt,
	}
	if c.selected != nil {
		m := *c.selected
		s.Member = &m
		s.Membership = c.membership
		s.DaysRemaining = c.days
		s.Message = member.StatusMessage(c.membership, c.days)
	}
	if c.session != nil {
		sess := *c.session
		s.Session = &sess
	}
	return s
}

// publishLocked hands the current snapshot to every subscriber, replacing
// any snapshot they have not read yet.
func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
