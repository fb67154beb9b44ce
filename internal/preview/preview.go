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

// Package preview extracts a bounded look at a tabular file: the column
// schema with cross-format type tags, and the leading rows rendered in
// JSON-representable form.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cardinalhq/tableconv/internal/filereader"
	"github.com/cardinalhq/tableconv/internal/filewriter"
	"github.com/cardinalhq/tableconv/internal/formats"
)

// DefaultMaxRows caps the preview when the caller does not ask for less.
const DefaultMaxRows = 50

// Column is one schema entry in source column order.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is a bounded preview of a tabular file.
type Result struct {
	Format  string           `json:"format"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Options tune a preview extraction.
type Options struct {
	// MaxRows caps the number of rows returned; values outside (0,
	// DefaultMaxRows] fall back to DefaultMaxRows.
	MaxRows int
}

// Extract reads up to MaxRows leading rows of the staged file and
// derives the column schema from them.
func Extract(ctx context.Context, path string, format formats.Format, opts Options) (*Result, error) {
	maxRows := opts.MaxRows
	if maxRows <= 0 || maxRows > DefaultMaxRows {
		maxRows = DefaultMaxRows
	}

	switch format {
	case formats.Parquet:
		return extractParquet(ctx, path, maxRows)
	case formats.CSV:
		return extractCSV(ctx, path, maxRows)
	case formats.NDJSON:
		return extractNDJSON(ctx, path, maxRows)
	default:
		return nil, fmt.Errorf("no preview for format %q", format)
	}
}

func extractParquet(ctx context.Context, path string, maxRows int) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	reader, err := filereader.NewParquetReader(f, st.Size(), maxRows)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	rows, err := readLimited(ctx, reader, maxRows)
	if err != nil {
		return nil, err
	}

	return &Result{
		Format:  formats.Parquet.String(),
		Columns: columnsFromSchema(reader.Schema()),
		Rows:    renderRows(rows, reader.Schema().ColumnNames()),
	}, nil
}

func extractCSV(ctx context.Context, path string, maxRows int) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	reader, err := filereader.NewCSVReader(f, maxRows)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	rows, err := readLimited(ctx, reader, maxRows)
	if err != nil {
		return nil, err
	}

	schema := schemaFromRows(reader.Headers(), rows)
	return &Result{
		Format:  formats.CSV.String(),
		Columns: columnsFromSchema(schema),
		Rows:    renderRows(rows, reader.Headers()),
	}, nil
}

func extractNDJSON(ctx context.Context, path string, maxRows int) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	reader, err := filereader.NewJSONLinesReader(f, maxRows)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	rows, err := readLimited(ctx, reader, maxRows)
	if err != nil {
		return nil, err
	}

	keys := reader.KeysSeen()
	schema := schemaFromRows(keys, rows)
	return &Result{
		Format:  formats.NDJSON.String(),
		Columns: columnsFromSchema(schema),
		Rows:    renderRows(rows, keys),
	}, nil
}

// readLimited gathers up to limit rows from r.
func readLimited(ctx context.Context, r filereader.Reader, limit int) ([]filereader.Row, error) {
	var rows []filereader.Row
	for len(rows) < limit {
		batch, err := r.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		for i := 0; i < batch.Len() && len(rows) < limit; i++ {
			rows = append(rows, batch.Get(i))
		}
	}
	return rows, nil
}

// schemaFromRows builds a schema with the given column order and types
// promoted from the sampled values.
func schemaFromRows(columns []string, rows []filereader.Row) *filereader.Schema {
	schema := filereader.NewSchema()
	for _, name := range columns {
		schema.AddColumn(name, filereader.DataTypeUnknown)
	}
	for _, row := range rows {
		for _, name := range columns {
			if value, ok := row[name]; ok {
				schema.AddColumn(name, filereader.InferTypeFromValue(value))
			}
		}
	}
	return schema
}

func columnsFromSchema(schema *filereader.Schema) []Column {
	cols := schema.Columns()
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = Column{Name: c.Name, Type: c.DataType.CanonicalTag()}
	}
	return out
}

// renderRows projects each row onto the column list in JSON-representable
// form. Missing columns render as nulls so every preview row has the
// same shape.
func renderRows(rows []filereader.Row, columns []string) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		rendered := make(map[string]any, len(columns))
		for _, name := range columns {
			rendered[name] = filewriter.JSONValue(row[name])
		}
		out[i] = rendered
	}
	return out
}
