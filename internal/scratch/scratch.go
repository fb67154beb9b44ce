// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package scratch manages request-scoped staging files under a private
// root directory. Every staging allocation is a Resource whose Release
// removes the file exactly once, on every exit path.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Manager owns a private staging directory and hands out Resources.
// It is safe for concurrent use by multiple requests.
type Manager struct {
	root string
}

// Resource is one on-disk staging allocation. Ownership is exclusive to
// the operation that acquired it; Release is idempotent.
type Resource struct {
	path    string
	release sync.Once
	err     error
}

// NewManager creates (if needed) and adopts the given root directory.
// An empty root selects a per-process directory under the OS temp dir.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), fmt.Sprintf("tableconv-scratch-%d", os.Getpid()))
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create scratch root %s: %w", root, err)
	}
	return &Manager{root: root}, nil
}

// Root returns the staging directory path.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a new, empty, uniquely named staging file. The suffix
// (with leading dot, may be empty) is preserved so downstream code can
// key off the extension. The file exists on disk before Acquire returns,
// so a failure mid-write still has something to clean up.
func (m *Manager) Acquire(suffix string) (*Resource, error) {
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	path := filepath.Join(m.root, uuid.NewString()+suffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close staging file: %w", err)
	}
	return &Resource{path: path}, nil
}

// Sweep removes every file still present under the root. Intended for
// shutdown; live requests must not be in flight.
func (m *Manager) Sweep() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read scratch root: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.Remove(filepath.Join(m.root, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to sweep %d staging files: %w", len(errs), errs[0])
	}
	return nil
}

// Path returns the on-disk location of the staging file.
func (r *Resource) Path() string {
	return r.path
}

// Open opens the staging file for reading.
func (r *Resource) Open() (*os.File, error) {
	return os.Open(r.path)
}

// Create truncates and opens the staging file for writing.
func (r *Resource) Create() (*os.File, error) {
	return os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY, 0600)
}

// Size returns the current size of the staging file in bytes.
func (r *Resource) Size() (int64, error) {
	fi, err := os.Stat(r.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Release removes the staging file. It is safe to call multiple times
// and from deferred or panicking paths; only the first call does work.
func (r *Resource) Release() error {
	r.release.Do(func() {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			r.err = fmt.Errorf("failed to remove staging file %s: %w", r.path, err)
		}
	})
	return r.err
}

// ReleaseAll releases every resource, keeping the first error.
func ReleaseAll(resources []*Resource) error {
	var first error
	for _, r := range resources {
		if r == nil {
			continue
		}
		if err := r.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
