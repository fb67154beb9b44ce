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

package filewriter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/tableconv/internal/filereader"
)

// CSVWriter renders rows as CSV with a fixed header. The header row is
// written immediately on construction, so empty inputs still produce a
// header-only file. Cells for columns a row lacks are empty.
type CSVWriter struct {
	w       *csv.Writer
	columns []string
	record  []string
	rows    int64
	closed  bool
}

var _ Writer = (*CSVWriter)(nil)

// NewCSVWriter creates a CSV writer over w with the given column order.
func NewCSVWriter(w io.Writer, columns []string) (*CSVWriter, error) {
	if len(columns) == 0 {
		return nil, errors.New("CSV output requires at least one column")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &CSVWriter{
		w:       cw,
		columns: cols,
		record:  make([]string, len(cols)),
	}, nil
}

func (w *CSVWriter) WriteBatch(ctx context.Context, batch *filereader.Batch) error {
	if w.closed {
		return errors.New("writer is closed")
	}

	for i := 0; i < batch.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := batch.Get(i)
		for j, col := range w.columns {
			w.record[j] = RenderCell(row[col])
		}
		if err := w.w.Write(w.record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
		w.rows++
	}
	return nil
}

// RowsWritten returns the number of data rows written, excluding the header.
func (w *CSVWriter) RowsWritten() int64 {
	return w.rows
}

func (w *CSVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.w.Flush()
	return w.w.Error()
}
