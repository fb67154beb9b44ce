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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/tableconv/internal/filereader"
)

// ParquetWriter renders rows into a parquet file. The column schema is
// fixed at construction; every column is optional so absent values
// become nulls. Values that do not fit their column's type render as
// strings on string columns and nulls elsewhere.
type ParquetWriter struct {
	pw     *parquet.GenericWriter[map[string]any]
	schema *filereader.Schema
	buf    []map[string]any
	rows   int64
	closed bool
}

var _ Writer = (*ParquetWriter)(nil)

// NewParquetWriter creates a parquet writer over w. tmpdir holds the
// writer's page buffer spill files.
func NewParquetWriter(w io.Writer, schema *filereader.Schema, tmpdir string) (*ParquetWriter, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, errors.New("parquet output requires at least one column")
	}

	nodes := make(map[string]parquet.Node, schema.Len())
	for _, col := range schema.Columns() {
		nodes[col.Name] = parquetNodeForType(col.DataType)
	}

	pqSchema := parquet.NewSchema("tableconv", parquet.Group(nodes))

	cfg, err := parquet.NewWriterConfig(writerOptions(tmpdir, pqSchema)...)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer config: %w", err)
	}

	return &ParquetWriter{
		pw:     parquet.NewGenericWriter[map[string]any](w, cfg),
		schema: schema,
	}, nil
}

func writerOptions(tmpdir string, schema *parquet.Schema) []parquet.WriterOption {
	return []parquet.WriterOption{
		schema,
		parquet.Compression(&parquet.Zstd),
		parquet.PageBufferSize(32 * 1024),
		parquet.ColumnIndexSizeLimit(1024),
		parquet.MaxRowsPerRowGroup(80_000),
		parquet.ColumnPageBuffers(
			parquet.NewFileBufferPool(tmpdir, "buffers.*"),
		),
	}
}

func parquetNodeForType(dt filereader.DataType) parquet.Node {
	switch dt {
	case filereader.DataTypeInt64:
		return parquet.Optional(parquet.Int(64))
	case filereader.DataTypeFloat64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case filereader.DataTypeBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	case filereader.DataTypeTimestamp:
		return parquet.Optional(parquet.Timestamp(parquet.Millisecond))
	case filereader.DataTypeBytes:
		return parquet.Optional(parquet.Leaf(parquet.ByteArrayType))
	default:
		// Null-only and mixed columns land as strings
		return parquet.Optional(parquet.String())
	}
}

func (w *ParquetWriter) WriteBatch(ctx context.Context, batch *filereader.Batch) error {
	if w.closed {
		return errors.New("writer is closed")
	}

	if cap(w.buf) < batch.Len() {
		w.buf = make([]map[string]any, 0, batch.Len())
	}
	w.buf = w.buf[:0]

	for i := 0; i < batch.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := batch.Get(i)
		out := make(map[string]any, w.schema.Len())
		for _, col := range w.schema.Columns() {
			out[col.Name] = coerceToColumn(row[col.Name], col.DataType)
		}
		w.buf = append(w.buf, out)
	}

	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.pw.Write(w.buf); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	w.rows += int64(len(w.buf))
	return nil
}

// coerceToColumn fits a canonical value into the physical type of its
// column. Mismatches render on string columns and null out elsewhere.
func coerceToColumn(value any, dt filereader.DataType) any {
	if value == nil {
		return nil
	}

	switch dt {
	case filereader.DataTypeInt64:
		switch v := value.(type) {
		case int64:
			return v
		case float64:
			if v == float64(int64(v)) {
				return int64(v)
			}
		}
		return nil
	case filereader.DataTypeFloat64:
		switch v := value.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		}
		return nil
	case filereader.DataTypeBool:
		if v, ok := value.(bool); ok {
			return v
		}
		return nil
	case filereader.DataTypeTimestamp:
		if v, ok := value.(time.Time); ok {
			return v.UTC().UnixMilli()
		}
		return nil
	case filereader.DataTypeBytes:
		if v, ok := value.([]byte); ok {
			return v
		}
		return nil
	default:
		return RenderCell(value)
	}
}

// RowsWritten returns the number of rows written.
func (w *ParquetWriter) RowsWritten() int64 {
	return w.rows
}

// Close flushes row groups and writes the parquet footer.
func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
