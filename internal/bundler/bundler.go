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

// Package bundler assembles multi-file conversion results into a zip
// archive streamed to the response. Entry names deduplicate with a
// " (n)" suffix, and the manifest describing every item's outcome is
// always the final entry.
package bundler

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ArchiveName is the filename offered for the zip download.
const ArchiveName = "converted_files.zip"

// ManifestName is the final entry in every archive.
const ManifestName = "manifest.json"

// ManifestEntry records one requested item's outcome.
type ManifestEntry struct {
	Source  string `json:"source"`
	Output  string `json:"output,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Bundler writes a zip archive entry by entry.
type Bundler struct {
	zw     *zip.Writer
	names  map[string]int
	closed bool
}

// New creates a Bundler over w. Compression uses the klauspost deflate
// at its default level.
func New(w io.Writer) *Bundler {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return &Bundler{
		zw:    zw,
		names: make(map[string]int),
	}
}

// AddEntry opens a new archive entry and returns the writer for its
// content. The returned name is the possibly-deduplicated entry name.
func (b *Bundler) AddEntry(name string) (io.Writer, string, error) {
	if b.closed {
		return nil, "", fmt.Errorf("bundle already closed")
	}

	final := b.dedupe(name)
	w, err := b.zw.Create(final)
	if err != nil {
		return nil, "", fmt.Errorf("create archive entry %q: %w", final, err)
	}
	return w, final, nil
}

// dedupe reserves a unique entry name, inserting " (n)" before the
// extension on collisions.
func (b *Bundler) dedupe(name string) string {
	n, taken := b.names[name]
	if !taken {
		b.names[name] = 0
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, exists := b.names[candidate]; !exists {
			b.names[name] = n
			b.names[candidate] = 0
			return candidate
		}
	}
}

// WriteManifest appends the manifest as the final entry and closes the
// archive.
func (b *Bundler) WriteManifest(entries []ManifestEntry) error {
	if b.closed {
		return fmt.Errorf("bundle already closed")
	}

	w, err := b.zw.Create(ManifestName)
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return b.Close()
}

// Close finalizes the archive without writing a manifest. Idempotent.
func (b *Bundler) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}
