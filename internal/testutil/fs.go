// Package testutil provides deterministic test doubles: a fixed wall
// clock and an in-memory filesystem matching the persist.FS contract.
package testutil

import (
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/hurajgor/hyprnote/internal/persist"
)

// MemFS is an in-memory persist.FS. Paths use "/" as separator; pair it
// with persist.PathBuilder{Sep: "/"}.
//
// Thread-safety: all methods are safe for concurrent use.
type MemFS struct {
	mu    sync.Mutex
	files map[string]string

	// FailWrites, when set, makes every WriteBatch return this error.
	FailWrites error
}

// NewMemFS creates an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]string)}
}

// Put seeds a file, creating implicit parent directories.
func (m *MemFS) Put(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// Files returns a sorted list of every file path, for assertions.
func (m *MemFS) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ReadText returns the file content, or fs.ErrNotExist.
func (m *MemFS) ReadText(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return "", fs.ErrNotExist
	}
	return content, nil
}

// WriteBatch writes every operation, or fails wholesale when FailWrites is
// set.
func (m *MemFS) WriteBatch(ops []persist.WriteOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for _, op := range ops {
		m.files[op.Path] = op.Content
	}
	return nil
}

// List returns the immediate children of dir. Directories are implicit:
// any path prefix with deeper entries lists as a directory.
func (m *MemFS) List(dir string) ([]persist.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := dir + "/"
	seen := make(map[string]persist.Entry)
	for path := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if name == "" {
			continue
		}
		seen[name] = persist.Entry{Path: prefix + name, Dir: nested}
	}

	out := make([]persist.Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Remove deletes a file or everything under a directory path.
func (m *MemFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	prefix := path + "/"
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
		}
	}
	return nil
}
