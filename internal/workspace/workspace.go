// Package workspace owns the scratch directory that holds transient pipeline
// files (raw videos, extracted audio) for the lifetime of a single run.
package workspace

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const dirPermissions = 0o750

// ErrEmptyKey is returned when a post identifier is empty.
var ErrEmptyKey = errors.New("workspace: empty artifact key")

// ErrReleased is returned when a released workspace is used again.
var ErrReleased = errors.New("workspace: already released")

var safeKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Workspace is an exclusively owned run directory beneath a base scratch path.
// One Workspace serves one pipeline run; concurrent runs must acquire their own.
type Workspace struct {
	base string
	dir  string

	mu       sync.Mutex
	released bool
}

// Acquire creates a fresh run directory under base. The base directory is
// created when missing and removed again on Release if nothing else lives there.
func Acquire(base string) (*Workspace, error) {
	if base == "" {
		return nil, errors.New("workspace: base path is empty")
	}
	if err := os.MkdirAll(base, dirPermissions); err != nil {
		return nil, fmt.Errorf("create workspace base %s: %w", base, err)
	}
	dir, err := os.MkdirTemp(base, "run-")
	if err != nil {
		return nil, fmt.Errorf("create run directory in %s: %w", base, err)
	}
	return &Workspace{base: base, dir: dir}, nil
}

// Dir returns the run directory.
func (w *Workspace) Dir() string { return w.dir }

// VideoPath returns the deterministic raw-video path for a post.
func (w *Workspace) VideoPath(key string) (string, error) {
	return w.path(key, "", ".mp4")
}

// AudioPath returns the deterministic extracted-audio path for a post.
func (w *Workspace) AudioPath(key string) (string, error) {
	return w.path(key, "audio_", ".mp3")
}

// Remove deletes a single file owned by the workspace. Missing files are ignored.
func (w *Workspace) Remove(path string) error {
	if filepath.Dir(path) != w.dir {
		return fmt.Errorf("workspace: %s is outside %s", path, w.dir)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Release recursively deletes the run directory, and the base directory when
// it is left empty. It is safe to call more than once.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true

	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove run directory %s: %w", w.dir, err)
	}
	// Another run may still own a sibling directory; leave the base in place then.
	entries, err := os.ReadDir(w.base)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(w.base)
	}
	return nil
}

func (w *Workspace) path(key, prefix, ext string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := w.check(); err != nil {
		return "", err
	}
	return filepath.Join(w.dir, prefix+fileKey(key)+ext), nil
}

func (w *Workspace) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return ErrReleased
	}
	return nil
}

// fileKey maps a post identifier to a file-name component. Safe identifiers
// are used verbatim; anything else is hex-encoded behind a '=' marker, which
// never appears in a verbatim key, so distinct identifiers never collide.
func fileKey(key string) string {
	if safeKey.MatchString(key) {
		return key
	}
	return "=" + hex.EncodeToString([]byte(key))
}
