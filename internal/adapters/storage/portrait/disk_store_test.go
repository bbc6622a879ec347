package portrait_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"accesspanel/internal/adapters/storage/portrait"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TestDiskStore_PutAndDelete verifies a png round trip on disk.
func TestDiskStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := portrait.NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	url, err := s.Put(ctx, "m1", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(url, portrait.URLPrefix+"m1-") || !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q, want /portraits/m1-<uuid>.png", url)
	}
	stored := filepath.Join(dir, strings.TrimPrefix(url, portrait.URLPrefix))
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	if err := s.Delete(ctx, url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Errorf("file still present after Delete: %v", err)
	}
	if err := s.Delete(ctx, url); err != nil {
		t.Errorf("Delete of missing file = %v, want nil", err)
	}
}

// TestDiskStore_Put_Rejects verifies content and size checks.
func TestDiskStore_Put_Rejects(t *testing.T) {
	s, err := portrait.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, portrait.ErrEmpty},
		{"text", []byte("definitely not an image"), portrait.ErrUnsupportedType},
		{"too large", append(pngBytes(t), make([]byte, portrait.MaxSize)...), portrait.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Put(context.Background(), "m1", bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Put() = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestDiskStore_Delete_ForeignURL verifies paths outside the store are refused.
func TestDiskStore_Delete_ForeignURL(t *testing.T) {
	s, _ := portrait.NewDiskStore(t.TempDir())
	for _, url := range []string{"https://cdn.example.com/a.png", "/portraits/../secret", "/portraits/"} {
		if err := s.Delete(context.Background(), url); !errors.Is(err, portrait.ErrForeignURL) {
			t.Errorf("Delete(%q) = %v, want ErrForeignURL", url, err)
		}
	}
}

// TestDiskStore_Put_SanitizesID verifies the id cannot escape the directory.
func TestDiskStore_Put_SanitizesID(t *testing.T) {
	s, _ := portrait.NewDiskStore(t.TempDir())
	url, err := s.Put(context.Background(), "../../etc", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if strings.Contains(strings.TrimPrefix(url, portrait.URLPrefix), "/") {
		t.Errorf("url %q escapes the portrait directory", url)
	}
}
