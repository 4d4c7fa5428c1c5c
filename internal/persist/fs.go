package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteOp pairs a target path with the full content to write there.
type WriteOp struct {
	Path    string
	Content string
}

// Entry is one child of a listed directory.
type Entry struct {
	Path string
	Dir  bool
}

// FS is the filesystem surface the persister depends on. The OS
// implementation is used in production; tests inject an in-memory one.
//
// ReadText returns an error satisfying IsNotExist for missing files.
// List of a missing directory returns an empty slice, not an error.
type FS interface {
	ReadText(path string) (string, error)
	WriteBatch(ops []WriteOp) error
	List(dir string) ([]Entry, error)
	Remove(path string) error
}

// IsNotExist reports whether err means the file or directory is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// OSFS implements FS on the host filesystem.
type OSFS struct{}

// ReadText reads the whole file as a string.
func (OSFS) ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteBatch writes every operation, creating parent directories as needed.
// The first failure aborts the batch and bubbles up; earlier writes are not
// rolled back (the store remains authoritative and a retry re-saves from
// current state).
func (OSFS) WriteBatch(ops []WriteOp) error {
	for _, op := range ops {
		if err := os.MkdirAll(filepath.Dir(op.Path), 0o755); err != nil {
			return fmt.Errorf("write batch: mkdir for %s: %w", op.Path, err)
		}
		if err := os.WriteFile(op.Path, []byte(op.Content), 0o644); err != nil {
			return fmt.Errorf("write batch: %s: %w", op.Path, err)
		}
	}
	return nil
}

// List returns the immediate children of dir. A missing directory is empty
// state, not an error.
func (OSFS) List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{Path: filepath.Join(dir, e.Name()), Dir: e.IsDir()})
	}
	return out, nil
}

// Remove deletes a file or directory tree. Removing something that is
// already gone is not an error.
func (OSFS) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
