package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxFrame caps a single still frame.
const maxFrame = 5 << 20

// HTTPCamera talks to a network camera that serves stills at a URL.
type HTTPCamera struct {
	url    string
	client *http.Client

	mu   sync.Mutex
	held string
}

// NewHTTPCamera creates a camera for the snapshot endpoint at url.
// A nil client gets a 5 second timeout.
func NewHTTPCamera(url string, client *http.Client) *HTTPCamera {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPCamera{url: url, client: client}
}

// Acquire probes the endpoint and marks the camera held.
// POST: 401/403 map to ErrPermissionDenied, transport errors and 5xx to ErrDeviceUnavailable
func (c *HTTPCamera) Acquire(ctx context.Context) (Handle, error) {
	c.mu.Lock()
	busy := c.held != ""
	c.mu.Unlock()
	if busy {
		return Handle{}, ErrInUse
	}

	resp, err := c.get(ctx)
	if err != nil {
		return Handle{}, err
	}
	resp.Body.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held != "" {
		return Handle{}, ErrInUse
	}
	h := Handle{ID: uuid.NewString(), Device: c.url, AcquiredAt: time.Now()}
	c.held = h.ID
	return h, nil
}

// Release frees the camera.
func (c *HTTPCamera) Release(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.ID == "" || h.ID != c.held {
		return ErrNotAcquired
	}
	c.held = ""
	return nil
}

// Capture fetches one still frame.
func (c *HTTPCamera) Capture(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrame))
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %v", ErrDeviceUnavailable, err)
	}
	return data, nil
}

func (c *HTTPCamera) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrPermissionDenied
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrDeviceUnavailable, resp.StatusCode)
	}
	return resp, nil
}
