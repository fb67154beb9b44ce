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

// Package convert implements the supported tabular format conversions.
// A Conversion runs in two steps: Prime reads enough of the input to
// surface malformed-input and schema errors before any output bytes
// exist, then Run streams the converted output to a writer.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/tableconv/internal/formats"
	"github.com/cardinalhq/tableconv/internal/scratch"
)

// Kind identifies a source/target format pair.
type Kind int

const (
	KindUnknown Kind = iota
	KindParquetToCSV
	KindCSVToParquet
	KindNDJSONToCSV
	KindCSVToNDJSON
)

// ErrUnsupportedKind indicates a format pair with no conversion.
var ErrUnsupportedKind = errors.New("unsupported conversion")

// ErrSchemaInference indicates no usable schema could be derived from
// the input, such as an NDJSON stream with no keys.
var ErrSchemaInference = errors.New("schema inference failed")

// ParseKind parses a pair spec like "csv-to-parquet".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "parquet-to-csv":
		return KindParquetToCSV, nil
	case "csv-to-parquet":
		return KindCSVToParquet, nil
	case "ndjson-to-csv":
		return KindNDJSONToCSV, nil
	case "csv-to-ndjson":
		return KindCSVToNDJSON, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindParquetToCSV:
		return "parquet-to-csv"
	case KindCSVToParquet:
		return "csv-to-parquet"
	case KindNDJSONToCSV:
		return "ndjson-to-csv"
	case KindCSVToNDJSON:
		return "csv-to-ndjson"
	default:
		return "unknown"
	}
}

// Source returns the input format of the pair.
func (k Kind) Source() formats.Format {
	switch k {
	case KindParquetToCSV:
		return formats.Parquet
	case KindCSVToParquet, KindCSVToNDJSON:
		return formats.CSV
	case KindNDJSONToCSV:
		return formats.NDJSON
	default:
		return formats.Unknown
	}
}

// Target returns the output format of the pair.
func (k Kind) Target() formats.Format {
	switch k {
	case KindParquetToCSV, KindNDJSONToCSV:
		return formats.CSV
	case KindCSVToParquet:
		return formats.Parquet
	case KindCSVToNDJSON:
		return formats.NDJSON
	default:
		return formats.Unknown
	}
}

// Options tune a conversion.
type Options struct {
	// BatchRows is how many rows move between reader and writer at once.
	BatchRows int

	// SampleRows bounds the leading window used for schema decisions:
	// the NDJSON header key union, and the rows whose types may promote
	// freely before later disagreements degrade a column to string.
	SampleRows int
}

func (o Options) withDefaults() Options {
	if o.BatchRows <= 0 {
		o.BatchRows = 1000
	}
	if o.SampleRows <= 0 {
		o.SampleRows = 1000
	}
	return o
}

// Conversion converts one staged input file.
type Conversion interface {
	// Prime reads the input far enough to surface malformed-input and
	// schema errors. It must be called before Run.
	Prime(ctx context.Context) error

	// Run streams the converted output to w.
	Run(ctx context.Context, w io.Writer) error

	// Close releases the conversion's temporary resources. Safe to call
	// after a failed Prime or Run.
	Close() error
}

// New creates a conversion of the given kind over a staged input file.
// Spill files for the two-pass conversions come from mgr.
func New(kind Kind, inputPath string, mgr *scratch.Manager, opts Options) (Conversion, error) {
	opts = opts.withDefaults()

	switch kind {
	case KindParquetToCSV:
		return newParquetToCSV(inputPath, opts), nil
	case KindCSVToParquet:
		return newCSVToParquet(inputPath, mgr, opts), nil
	case KindNDJSONToCSV:
		return newNDJSONToCSV(inputPath, mgr, opts), nil
	case KindCSVToNDJSON:
		return newCSVToNDJSON(inputPath, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}
