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

// Package formats names the three tabular formats the service understands
// and performs the cheap structural checks used to validate a staged input
// against its declared format before conversion work starts.
package formats

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies one of the supported tabular file formats.
type Format int

const (
	Unknown Format = iota
	Parquet
	CSV
	NDJSON
)

func (f Format) String() string {
	switch f {
	case Parquet:
		return "parquet"
	case CSV:
		return "csv"
	case NDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// Parse maps a route segment ("parquet", "csv", "ndjson") to a Format.
func Parse(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "parquet":
		return Parquet, nil
	case "csv":
		return CSV, nil
	case "ndjson":
		return NDJSON, nil
	default:
		return Unknown, fmt.Errorf("unknown format %q", s)
	}
}

// Extensions returns the accepted file extensions for the format,
// lowercase with leading dot.
func (f Format) Extensions() []string {
	switch f {
	case Parquet:
		return []string{".parquet"}
	case CSV:
		return []string{".csv"}
	case NDJSON:
		return []string{".ndjson", ".jsonl"}
	default:
		return nil
	}
}

// OutputSuffix returns the extension used when naming converted output.
func (f Format) OutputSuffix() string {
	switch f {
	case Parquet:
		return ".parquet"
	case CSV:
		return ".csv"
	case NDJSON:
		return ".ndjson"
	default:
		return ""
	}
}

// MediaType returns the content type used when streaming this format.
func (f Format) MediaType() string {
	switch f {
	case Parquet:
		return "application/octet-stream"
	case CSV:
		return "text/csv"
	case NDJSON:
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}

// AcceptsFilename reports whether the declared filename carries one of the
// format's accepted extensions.
func (f Format) AcceptsFilename(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range f.Extensions() {
		if ext == accepted {
			return true
		}
	}
	return false
}

// FromFilename resolves a format from a filename extension.
func FromFilename(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet":
		return Parquet, true
	case ".csv":
		return CSV, true
	case ".ndjson", ".jsonl":
		return NDJSON, true
	default:
		return Unknown, false
	}
}
