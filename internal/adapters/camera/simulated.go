package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Simulated is an in-process camera. It grants one holder at a time and
// captures a generated test pattern.
type Simulated struct {
	mu       sync.Mutex
	failure  error
	held     string
	acquires int
	releases int
}

// NewSimulated returns a camera that grants access.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// SetFailure makes subsequent Acquire and Capture calls fail with err.
// Pass nil to grant access again.
func (s *Simulated) SetFailure(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// Acquire opens the simulated stream.
// POST: Handle held until Release; ErrInUse while another handle is held
func (s *Simulated) Acquire(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return Handle{}, s.failure
	}
	if s.held != "" {
		return Handle{}, ErrInUse
	}
	h := Handle{ID: uuid.NewString(), Device: "simulated", AcquiredAt: time.Now()}
	s.held = h.ID
	s.acquires++
	return h, nil
}

// Release closes the stream behind h.
func (s *Simulated) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" || h.ID != s.held {
		return ErrNotAcquired
	}
	s.held = ""
	s.releases++
	return nil
}

// Held reports whether a handle is currently outstanding.
func (s *Simulated) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held != ""
}

// Counts returns how many acquisitions and releases have happened.
func (s *Simulated) Counts() (acquires, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires, s.releases
}

// Capture returns a PNG still frame.
func (s *Simulated) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	failure := s.failure
	s.mu.Unlock()
	if failure != nil {
		return nil, failure
	}

	const w, h = 64, 64
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
