package kiosk

import (
	"errors"
	"time"
)

// Status is the scan status shown on the access panel.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusScanning Status = "scanning"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusVerified Status = "verified"
)

// Domain errors
var (
	ErrNotActive     = errors.New("auto-scan session is not active")
	ErrZeroStartedAt = errors.New("started_at cannot be zero")
)

// transitions lists the allowed moves out of each status.
var transitions = map[Status][]Status{
	StatusIdle:     {StatusScanning},
	StatusScanning: {StatusSuccess, StatusError, StatusIdle},
	StatusSuccess:  {StatusVerified, StatusIdle},
	StatusVerified: {StatusIdle, StatusScanning},
	StatusError:    {StatusIdle, StatusScanning},
}

// CanTransition reports whether the panel may move from one status to another.
// Scanning and success may only fall back to idle when auto-scan is stopped
// or the panel is torn down.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTrigger reports whether a new scan may start from s.
func (s Status) CanTrigger() bool {
	return CanTransition(s, StatusScanning)
}

// CanReset reports whether an operator reset is meaningful from s.
func (s Status) CanReset() bool {
	return s == StatusSuccess || s == StatusError || s == StatusVerified
}

// Busy reports whether a scan is in flight or its result is still on screen.
func (s Status) Busy() bool {
	return s == StatusScanning || s == StatusSuccess
}

// Prompt is the line shown under the scanner for s.
func (s Status) Prompt() string {
	switch s {
	case StatusIdle:
		return "Ready to scan. Press the button to start."
	case StatusScanning:
		return "Hold still, scanning..."
	case StatusSuccess:
		return "Success! Verified."
	case StatusError:
		return "Could not complete the scan. Try again."
	case StatusVerified:
		return "Scan complete. Ready for the next person."
	}
	return ""
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Session represents a period of continuous (auto) scanning.
// The camera is held for the lifetime of an active session.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
	Ticks     int       `json:"ticks"`
}

// Validate checks if the Session has valid data.
// PRE: Session struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Session) Validate() error {
	if s.StartedAt.IsZero() {
		return ErrZeroStartedAt
	}
	return nil
}

// IsActive returns true if the auto-scan session is still running.
// INVARIANT: Session fields are not mutated
func (s *Session) IsActive() bool {
	return s.EndedAt.IsZero()
}

// Tick records one scheduled scan attempt.
func (s *Session) Tick() {
	s.Ticks++
}

// End terminates the session at the given time.
// PRE: Session is currently active
// POST: EndedAt is set
func (s *Session) End(at time.Time) error {
	if !s.IsActive() {
		return ErrNotActive
	}
	s.EndedAt = at
	return nil
}
