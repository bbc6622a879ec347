// Package camera provides the media capability behind auto-scan and portrait
// capture. A Handle is held for as long as the camera stream is open.
package camera

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	ErrInUse             = errors.New("camera already acquired")
	ErrNotAcquired       = errors.New("camera handle is not held")
)

// Handle identifies one acquisition. Release it exactly once.
type Handle struct {
	ID         string
	Device     string
	AcquiredAt time.Time
}

// Camera is implemented by every source in this package.
type Camera interface {
	Acquire(ctx context.Context) (Handle, error)
	Release(h Handle) error
	Capture(ctx context.Context) ([]byte, error)
}

// Open picks a camera for the configured device string:
// "" or "simulated" for the built-in test pattern, "simulated:denied" and
// "simulated:unavailable" for failing simulations, and an http(s) URL for a
// network camera's still-image endpoint.
func Open(device string) Camera {
	switch {
	case strings.HasPrefix(device, "http://"), strings.HasPrefix(device, "https://"):
		return NewHTTPCamera(device, nil)
	case device == "simulated:denied":
		s := NewSimulated()
		s.SetFailure(ErrPermissionDenied)
		return s
	case device == "simulated:unavailable":
		s := NewSimulated()
		s.SetFailure(ErrDeviceUnavailable)
		return s
	}
	return NewSimulated()
}
