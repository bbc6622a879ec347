package portrait

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxSize is the largest accepted portrait in bytes.
const MaxSize = 5 << 20 // 5 MB

// URLPrefix is where stored portraits are served from.
const URLPrefix = "/portraits/"

// Errors
var (
	ErrTooLarge        = errors.New("portrait must be under 5 MB")
	ErrUnsupportedType = errors.New("portrait must be a png or jpeg image")
	ErrEmpty           = errors.New("portrait is empty")
	ErrForeignURL      = errors.New("portrait url is not managed by this store")
)

// extensions maps sniffed content types to the stored file extension.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// Store keeps portrait blobs and hands back the URL they are served from.
type Store interface {
	Put(ctx context.Context, memberID string, src io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// DiskStore writes portraits to a local directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a store rooted at dir.
// PRE: dir is writable or creatable
// POST: dir exists
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir portrait dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory portraits are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put sniffs, size-checks, and writes a portrait for memberID.
// PRE: memberID is non-empty
// POST: Returns the URL under URLPrefix; nothing is written on error
func (s *DiskStore) Put(ctx context.Context, memberID string, src io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(src, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read portrait: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}
	ext, ok := extensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedType
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := sanitize(memberID) + "-" + uuid.NewString() + ext
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return URLPrefix + name, nil
}

// Delete removes the blob behind url. Missing files are not an error.
// PRE: url was returned by Put
// POST: file removed
func (s *DiskStore) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, URLPrefix)
	if !ok || name == "" || name != path.Base(name) {
		return ErrForeignURL
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// sanitize keeps ids safe to use as a file name prefix.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, id)
}
