// Package output persists final pipeline artifacts outside the run workspace.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for empty keys or keys escaping the sink root.
var ErrInvalidKey = errors.New("output: invalid key")

// Sink stores and retrieves final artifacts by key. Keys are slash-separated
// relative names such as "<run-id>/script.txt".
type Sink interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

const (
	filePermissions = 0o644
	dirPermissions  = 0o755
)

// DirSink writes artifacts beneath a local directory.
type DirSink struct {
	root string
}

// NewDirSink creates a sink rooted at dir. The directory is created lazily.
func NewDirSink(dir string) *DirSink {
	return &DirSink{root: dir}
}

// Put writes data to root/key and returns the file path.
func (s *DirSink) Put(_ context.Context, key string, data []byte) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize %s: %w", key, err)
	}
	return path, nil
}

// Get reads root/key.
func (s *DirSink) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *DirSink) resolve(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
