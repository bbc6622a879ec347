package kiosk_test

import (
	"testing"
	"time"

	"accesspanel/internal/domain/kiosk"
)

// TestCanTransition tests the scan status transition table.
func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to kiosk.Status
		want     bool
	}{
		{kiosk.StatusIdle, kiosk.StatusScanning, true},
		{kiosk.StatusIdle, kiosk.StatusSuccess, false},
		{kiosk.StatusScanning, kiosk.StatusSuccess, true},
		{kiosk.StatusScanning, kiosk.StatusError, true},
		{kiosk.StatusScanning, kiosk.StatusScanning, false},
		{kiosk.StatusSuccess, kiosk.StatusVerified, true},
		{kiosk.StatusSuccess, kiosk.StatusScanning, false},
		{kiosk.StatusVerified, kiosk.StatusScanning, true},
		{kiosk.StatusVerified, kiosk.StatusIdle, true},
		{kiosk.StatusError, kiosk.StatusScanning, true},
		{kiosk.StatusError, kiosk.StatusIdle, true},
		{kiosk.StatusError, kiosk.StatusVerified, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := kiosk.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestStatusPredicates tests CanTrigger, CanReset and Busy.
func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status     kiosk.Status
		canTrigger bool
		canReset   bool
		busy       bool
	}{
		{kiosk.StatusIdle, true, false, false},
		{kiosk.StatusScanning, false, false, true},
		{kiosk.StatusSuccess, false, true, true},
		{kiosk.StatusVerified, true, true, false},
		{kiosk.StatusError, true, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanTrigger(); got != tt.canTrigger {
				t.Errorf("CanTrigger() = %v, want %v", got, tt.canTrigger)
			}
			if got := tt.status.CanReset(); got != tt.canReset {
				t.Errorf("CanReset() = %v, want %v", got, tt.canReset)
			}
			if got := tt.status.Busy(); got != tt.busy {
				t.Errorf("Busy() = %v, want %v", got, tt.busy)
			}
			if !tt.status.Valid() {
				t.Error("Valid() = false")
			}
		})
	}

	if kiosk.Status("paused").Valid() {
		t.Error("unknown status should not be valid")
	}
}

// TestSession_Validate tests validation of an auto-scan Session.
func TestSession_Validate(t *testing.T) {
	s := kiosk.Session{ID: "1", StartedAt: time.Now()}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	zero := kiosk.Session{ID: "2"}
	if err := zero.Validate(); err != kiosk.ErrZeroStartedAt {
		t.Errorf("Validate() = %v, want ErrZeroStartedAt", err)
	}
}

// TestSession_End tests ending an auto-scan session.
func TestSession_End(t *testing.T) {
	t.Run("end active session", func(t *testing.T) {
		s := kiosk.Session{ID: "1", StartedAt: time.Now()}
		s.Tick()
		s.Tick()
		if err := s.End(time.Now()); err != nil {
			t.Errorf("End() unexpected error: %v", err)
		}
		if s.IsActive() {
			t.Error("session should be ended")
		}
		if s.Ticks != 2 {
			t.Errorf("Ticks = %d, want 2", s.Ticks)
		}
	})

	t.Run("end already ended session", func(t *testing.T) {
		s := kiosk.Session{ID: "2", StartedAt: time.Now(), EndedAt: time.Now()}
		if err := s.End(time.Now()); err != kiosk.ErrNotActive {
			t.Errorf("End() = %v, want ErrNotActive", err)
		}
	})
}

// TestStatus_Prompt tests every known status has a prompt.
func TestStatus_Prompt(t *testing.T) {
	for _, s := range []kiosk.Status{kiosk.StatusIdle, kiosk.StatusScanning, kiosk.StatusSuccess, kiosk.StatusError, kiosk.StatusVerified} {
		if s.Prompt() == "" {
			t.Errorf("%s has no prompt", s)
		}
	}
	if kiosk.Status("bogus").Prompt() != "" {
		t.Error("unknown status should have no prompt")
	}
}
