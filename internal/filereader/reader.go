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

// Package filereader provides a generic interface for reading rows from the
// supported tabular file formats in bounded batches. Callers construct
// readers directly and compose them as needed.
package filereader

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Row represents a single row of data as a map of column names to values.
// Values use the canonical set: nil, bool, int64, float64, string,
// time.Time, []byte.
type Row map[string]any

// Batch is a bounded group of rows read together.
type Batch struct {
	rows []Row
}

// NewBatch creates an empty batch with the given capacity hint.
func NewBatch(capacity int) *Batch {
	return &Batch{rows: make([]Row, 0, capacity)}
}

// AddRow appends a fresh row to the batch and returns it for filling.
func (b *Batch) AddRow() Row {
	row := make(Row)
	b.rows = append(b.rows, row)
	return row
}

// Append adds an existing row to the batch.
func (b *Batch) Append(row Row) {
	b.rows = append(b.rows, row)
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.rows)
}

// Get returns the row at index i.
func (b *Batch) Get(i int) Row {
	return b.rows[i]
}

// Reader is the core interface for reading rows from any file format.
type Reader interface {
	// Next returns the next batch of rows, up to the reader's batch size.
	// Returns io.EOF when there are no more rows.
	Next(ctx context.Context) (*Batch, error)

	// Close releases any resources held by the reader.
	Close() error
}

// ErrParse is a sentinel error indicating a malformed record.
// Use errors.Is(err, ErrParse) to check for it and errors.As with
// *ParseError to extract the location.
var ErrParse = errors.New("malformed record")

// ParseError reports a malformed record at a specific location in the
// source. Line is 1-based; Offset is the byte offset of the record when
// the underlying decoder tracks one, else -1.
type ParseError struct {
	Line   int64
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at line %d (byte offset %d): %v", ErrParse, e.Line, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s at line %d: %v", ErrParse, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// drainContext returns the context error if the context is done, so long
// read loops stop promptly on cancellation.
func drainContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ReadAll gathers every remaining row from r. Intended for tests and
// bounded inputs only.
func ReadAll(ctx context.Context, r Reader) ([]Row, error) {
	var rows []Row
	for {
		batch, err := r.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return rows, nil
			}
			return nil, err
		}
		for i := 0; i < batch.Len(); i++ {
			rows = append(rows, batch.Get(i))
		}
	}
}
