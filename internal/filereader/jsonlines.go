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
	"bufio"
	"context"
	"io"
	"strings"
)

const maxJSONLineBytes = 64 * 1024 * 1024

// JSONLinesReader reads newline-delimited JSON objects in batches.
// Nested objects flatten to dot-joined key paths and arrays serialize to
// compact JSON strings, so every row is a flat map over the canonical
// value set. Blank lines are skipped. Key order of first appearance is
// tracked across rows for writers that need a stable header.
type JSONLinesReader struct {
	scanner   *bufio.Scanner
	closer    io.Closer
	closed    bool
	batchSize int
	lineNum   int64
	totalRows int64

	keyOrder []string
	keysSeen map[string]struct{}
	keyLimit int64
	rowsRead int64
}

var _ Reader = (*JSONLinesReader)(nil)

// NewJSONLinesReader creates a reader over an NDJSON stream. The reader
// takes ownership of the closer.
func NewJSONLinesReader(reader io.ReadCloser, batchSize int) (*JSONLinesReader, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLineBytes)

	return &JSONLinesReader{
		scanner:   scanner,
		closer:    reader,
		batchSize: batchSize,
		keysSeen:  make(map[string]struct{}),
	}, nil
}

func (r *JSONLinesReader) Next(ctx context.Context) (*Batch, error) {
	if r.closed {
		return nil, io.EOF
	}

	batch := NewBatch(r.batchSize)

	for batch.Len() < r.batchSize {
		if err := drainContext(ctx); err != nil {
			return nil, err
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, &ParseError{Line: r.lineNum + 1, Offset: -1, Err: err}
			}
			break
		}
		r.lineNum++

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		for _, record := range splitEscapedRecords(line) {
			fields, err := FlattenJSONObject([]byte(record))
			if err != nil {
				return nil, &ParseError{Line: r.lineNum, Offset: -1, Err: err}
			}

			row := batch.AddRow()
			r.rowsRead++
			recordKeys := r.keyLimit <= 0 || r.rowsRead <= r.keyLimit
			for _, f := range fields {
				row[f.Key] = f.Value
				if !recordKeys {
					continue
				}
				if _, seen := r.keysSeen[f.Key]; !seen {
					r.keysSeen[f.Key] = struct{}{}
					r.keyOrder = append(r.keyOrder, f.Key)
				}
			}
		}
	}

	if batch.Len() == 0 {
		r.closed = true
		return nil, io.EOF
	}

	r.totalRows += int64(batch.Len())
	return batch, nil
}

// splitEscapedRecords handles lines where multiple records are joined by
// a literal backslash-n escape instead of a real newline, which some
// producers emit. Only the two-character sequence between a closing and
// an opening brace splits; escapes inside string values are untouched.
func splitEscapedRecords(line string) []string {
	parts := strings.Split(line, `}\n{`)
	if len(parts) == 1 {
		return []string{line}
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = "{" + p
		}
		if i < len(parts)-1 {
			p = p + "}"
		}
		out[i] = p
	}
	return out
}

// LimitKeyDiscovery stops recording unseen keys after the first n rows,
// counted per row rather than per batch. Rows past the cutoff still carry
// all their values; writers projecting onto KeysSeen drop the extras.
// Zero or negative means no limit. Set before the first Next call.
func (r *JSONLinesReader) LimitKeyDiscovery(n int) {
	r.keyLimit = int64(n)
}

// KeysSeen returns every flattened key observed so far, in order of
// first appearance across the stream.
func (r *JSONLinesReader) KeysSeen() []string {
	out := make([]string, len(r.keyOrder))
	copy(out, r.keyOrder)
	return out
}

// TotalRowsReturned returns the total number of rows returned via Next().
func (r *JSONLinesReader) TotalRowsReturned() int64 {
	return r.totalRows
}

// Close closes the reader and the underlying io.ReadCloser.
func (r *JSONLinesReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	r.scanner = nil
	return err
}
