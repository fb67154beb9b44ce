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

package filereader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVReader reads rows from a CSV stream in batches. The first record is
// the header row; each cell is parsed into the canonical value set with
// the int64 -> float64 -> bool -> timestamp -> string ladder. Empty cells
// become nil.
type CSVReader struct {
	reader    *csv.Reader
	headers   []string
	closed    bool
	totalRows int64
	closer    io.Closer
	batchSize int
	rowIndex  int64
}

var _ Reader = (*CSVReader)(nil)

// NewCSVReader creates a new CSVReader for the given io.ReadCloser.
// The reader takes ownership of the closer and will close it when Close
// is called.
func NewCSVReader(reader io.ReadCloser, batchSize int) (*CSVReader, error) {
	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1 // Field count checked per record below

	headers, err := csvReader.Read()
	if err != nil {
		_ = reader.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("CSV file has no header row")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(headers) == 0 {
		_ = reader.Close()
		return nil, fmt.Errorf("CSV file has no headers")
	}

	if batchSize <= 0 {
		batchSize = 1000
	}

	return &CSVReader{
		reader:    csvReader,
		headers:   headers,
		closer:    reader,
		batchSize: batchSize,
	}, nil
}

// Headers returns the header row in source order.
func (r *CSVReader) Headers() []string {
	out := make([]string, len(r.headers))
	copy(out, r.headers)
	return out
}

func (r *CSVReader) Next(ctx context.Context) (*Batch, error) {
	if r.closed {
		return nil, io.EOF
	}

	batch := NewBatch(r.batchSize)

	for batch.Len() < r.batchSize {
		if err := drainContext(ctx); err != nil {
			return nil, err
		}

		offset := r.reader.InputOffset()
		record, err := r.reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, &ParseError{Line: r.rowIndex + 2, Offset: offset, Err: err}
		}
		r.rowIndex++

		if len(record) != len(r.headers) {
			return nil, &ParseError{
				Line:   r.rowIndex + 1,
				Offset: offset,
				Err:    fmt.Errorf("record has %d fields, header has %d", len(record), len(r.headers)),
			}
		}

		row := batch.AddRow()
		for i, value := range record {
			row[r.headers[i]] = ParseCSVValue(value)
		}
	}

	if batch.Len() == 0 {
		r.closed = true
		return nil, io.EOF
	}

	r.totalRows += int64(batch.Len())
	return batch, nil
}

// Close closes the reader and the underlying io.ReadCloser.
func (r *CSVReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	r.reader = nil
	return err
}

// TotalRowsReturned returns the total number of rows that have been
// successfully returned via Next().
func (r *CSVReader) TotalRowsReturned() int64 {
	return r.totalRows
}

// ParseCSVValue parses a CSV cell into the canonical value set. Empty
// cells are nil. Integer parsing runs before bool so that "1"/"0" stay
// numeric; timestamps are recognized only in RFC 3339 form.
func ParseCSVValue(value string) any {
	trimmed := strings.TrimSpace(value)

	if trimmed == "" {
		return nil
	}

	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}

	switch trimmed {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}

	// RFC 3339 timestamps are at least 20 bytes ("2006-01-02T15:04:05Z")
	if len(trimmed) >= 20 && trimmed[4] == '-' {
		if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return ts.UTC()
		}
	}

	return value
}
