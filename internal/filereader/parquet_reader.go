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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ParquetReader reads rows from a parquet file in batches. Values are
// normalized to the canonical set: narrow integers widen to int64,
// float32 widens to float64, and timestamp-typed columns decode to
// time.Time in UTC. Nested groups flatten to dot-joined column paths.
type ParquetReader struct {
	pf        *parquet.File
	pfr       *parquet.GenericReader[map[string]any]
	schema    *Schema
	tsUnits   map[string]time.Duration
	closed    bool
	exhausted bool
	rowCount  int64
	batchSize int
	readBuf   []map[string]any // reusable buffer for reading parquet rows
}

var _ Reader = (*ParquetReader)(nil)

// NewParquetReader creates a new ParquetReader for the given io.ReaderAt.
func NewParquetReader(reader io.ReaderAt, size int64, batchSize int) (*ParquetReader, error) {
	pf, err := parquet.OpenFile(reader, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	pfr := parquet.NewGenericReader[map[string]any](pf, pf.Schema())

	if batchSize <= 0 {
		batchSize = 1000
	}

	schema := NewSchema()
	tsUnits := make(map[string]time.Duration)
	extractParquetSchema(pf.Schema().Fields(), "", schema, tsUnits)

	// Pre-allocate reusable buffer for reading parquet rows
	readBuf := make([]map[string]any, batchSize)
	for i := range readBuf {
		readBuf[i] = make(map[string]any)
	}

	return &ParquetReader{
		pf:        pf,
		pfr:       pfr,
		schema:    schema,
		tsUnits:   tsUnits,
		batchSize: batchSize,
		readBuf:   readBuf,
	}, nil
}

// Schema returns the column schema in the file's declared field order.
func (r *ParquetReader) Schema() *Schema {
	return r.schema
}

// NumRows returns the row count from the file metadata.
func (r *ParquetReader) NumRows() int64 {
	if r.pf == nil {
		return 0
	}
	return r.pf.NumRows()
}

// Next returns the next batch of rows from the parquet file.
func (r *ParquetReader) Next(ctx context.Context) (*Batch, error) {
	if r.closed || r.pfr == nil {
		return nil, errors.New("reader is closed or not initialized")
	}

	if r.exhausted {
		return nil, io.EOF
	}

	if err := drainContext(ctx); err != nil {
		return nil, err
	}

	// Clear the reusable buffer maps from previous use
	for i := range r.readBuf {
		for k := range r.readBuf[i] {
			delete(r.readBuf[i], k)
		}
	}

	n, err := r.pfr.Read(r.readBuf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("parquet reader error: %w", err)
	}
	if n == 0 {
		r.exhausted = true
		return nil, io.EOF
	}

	batch := NewBatch(n)
	for i := range n {
		batchRow := batch.AddRow()
		flattenParquetRow("", r.readBuf[i], batchRow, r.tsUnits)
	}

	r.rowCount += int64(n)

	if err == io.EOF {
		r.exhausted = true
	}

	return batch, nil
}

// Close closes the reader and releases resources.
func (r *ParquetReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.pfr != nil {
		if err := r.pfr.Close(); err != nil {
			return fmt.Errorf("failed to close parquet reader: %w", err)
		}
		r.pfr = nil
	}
	r.pf = nil

	return nil
}

// TotalRowsReturned returns the total number of rows that have been
// successfully returned via Next().
func (r *ParquetReader) TotalRowsReturned() int64 {
	return r.rowCount
}

// extractParquetSchema walks the file's fields in declared order,
// flattening groups into dot-joined paths and recording the timestamp
// unit for timestamp-typed leaves.
func extractParquetSchema(fields []parquet.Field, prefix string, schema *Schema, tsUnits map[string]time.Duration) {
	for _, field := range fields {
		path := field.Name()
		if prefix != "" {
			path = prefix + FlattenSeparator + field.Name()
		}

		if field.Leaf() {
			dt, unit := parquetFieldType(field)
			schema.AddColumn(path, dt)
			if dt == DataTypeTimestamp {
				tsUnits[path] = unit
			}
			continue
		}

		extractParquetSchema(field.Fields(), path, schema, tsUnits)
	}
}

func parquetFieldType(field parquet.Field) (DataType, time.Duration) {
	typ := field.Type()

	if lt := typ.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil, lt.Enum != nil, lt.Json != nil, lt.UUID != nil:
			return DataTypeString, 0
		case lt.Timestamp != nil:
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				return DataTypeTimestamp, time.Millisecond
			case lt.Timestamp.Unit.Micros != nil:
				return DataTypeTimestamp, time.Microsecond
			default:
				return DataTypeTimestamp, time.Nanosecond
			}
		case lt.Date != nil:
			return DataTypeInt64, 0
		case lt.Integer != nil:
			return DataTypeInt64, 0
		}
	}

	switch typ.Kind() {
	case parquet.Boolean:
		return DataTypeBool, 0
	case parquet.Int32, parquet.Int64, parquet.Int96:
		return DataTypeInt64, 0
	case parquet.Float, parquet.Double:
		return DataTypeFloat64, 0
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if typ.String() == "STRING" {
			return DataTypeString, 0
		}
		return DataTypeBytes, 0
	default:
		return DataTypeAny, 0
	}
}

// flattenParquetRow copies the decoded row into dst, widening narrow
// numerics and converting timestamp columns using their declared unit.
func flattenParquetRow(prefix string, src map[string]any, dst Row, tsUnits map[string]time.Duration) {
	for k, v := range src {
		path := k
		if prefix != "" {
			path = prefix + FlattenSeparator + k
		}

		if nested, ok := v.(map[string]any); ok {
			flattenParquetRow(path, nested, dst, tsUnits)
			continue
		}

		dst[path] = normalizeParquetValue(path, v, tsUnits)
	}
}

func normalizeParquetValue(path string, v any, tsUnits map[string]time.Duration) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case int32:
		return int64(tv)
	case int:
		return int64(tv)
	case int64:
		if unit, ok := tsUnits[path]; ok {
			return timestampFromUnit(tv, unit)
		}
		return tv
	case float32:
		return float64(tv)
	case time.Time:
		return tv.UTC()
	default:
		return v
	}
}

func timestampFromUnit(v int64, unit time.Duration) time.Time {
	switch unit {
	case time.Millisecond:
		return time.UnixMilli(v).UTC()
	case time.Microsecond:
		return time.UnixMicro(v).UTC()
	default:
		return time.Unix(0, v).UTC()
	}
}
