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
	"time"
)

// DataType represents the type of data in a column.
type DataType int

const (
	DataTypeUnknown DataType = iota // Unknown/uninitialized - no value seen yet
	DataTypeNull                    // Only nulls seen
	DataTypeString
	DataTypeInt64
	DataTypeFloat64
	DataTypeBool
	DataTypeTimestamp
	DataTypeBytes
	DataTypeAny // Mixed/unresolved - values passed through as-is
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeNull:
		return "null"
	case DataTypeString:
		return "string"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat64:
		return "float64"
	case DataTypeBool:
		return "bool"
	case DataTypeTimestamp:
		return "timestamp"
	case DataTypeBytes:
		return "bytes"
	case DataTypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// CanonicalTag returns the cross-format type tag exposed to API callers:
// one of integer, float, boolean, string, timestamp, null, mixed.
func (dt DataType) CanonicalTag() string {
	switch dt {
	case DataTypeInt64:
		return "integer"
	case DataTypeFloat64:
		return "float"
	case DataTypeBool:
		return "boolean"
	case DataTypeString, DataTypeBytes:
		return "string"
	case DataTypeTimestamp:
		return "timestamp"
	case DataTypeNull:
		return "null"
	default:
		return "mixed"
	}
}

// ColumnSchema describes a single column.
type ColumnSchema struct {
	Name     string
	DataType DataType
}

// Schema is an ordered sequence of columns. Order is the source-declared
// order when the source has one (parquet field order, CSV header order,
// NDJSON first-seen key order).
type Schema struct {
	columns []ColumnSchema
	index   map[string]int
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{index: make(map[string]int)}
}

// AddColumn appends a column, or promotes the type of an existing one.
func (s *Schema) AddColumn(name string, dataType DataType) {
	if i, ok := s.index[name]; ok {
		s.columns[i].DataType = PromoteType(s.columns[i].DataType, dataType)
		return
	}
	s.index[name] = len(s.columns)
	s.columns = append(s.columns, ColumnSchema{Name: name, DataType: dataType})
}

// SetColumnType overwrites the type of an existing column.
func (s *Schema) SetColumnType(name string, dataType DataType) {
	if i, ok := s.index[name]; ok {
		s.columns[i].DataType = dataType
	}
}

// ColumnType returns the data type for a column name.
func (s *Schema) ColumnType(name string) DataType {
	if i, ok := s.index[name]; ok {
		return s.columns[i].DataType
	}
	return DataTypeUnknown
}

// HasColumn returns true if the schema has the specified column.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Columns returns the column schemas in declaration order.
func (s *Schema) Columns() []ColumnSchema {
	out := make([]ColumnSchema, len(s.columns))
	copy(out, s.columns)
	return out
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// PromoteType returns the merged type when two observations of a column
// disagree. String dominates everything except pure nulls; numeric types
// widen int64 -> float64; anything else mixed with a scalar becomes string.
func PromoteType(a, b DataType) DataType {
	if a == b {
		return a
	}
	if a == DataTypeUnknown || a == DataTypeNull {
		return b
	}
	if b == DataTypeUnknown || b == DataTypeNull {
		return a
	}

	if a == DataTypeAny || b == DataTypeAny {
		return DataTypeAny
	}

	if a == DataTypeString || b == DataTypeString {
		return DataTypeString
	}

	// Bytes promotes to string with anything else
	if a == DataTypeBytes || b == DataTypeBytes {
		return DataTypeString
	}

	// Float64 is more general than int64
	if (a == DataTypeFloat64 && b == DataTypeInt64) ||
		(a == DataTypeInt64 && b == DataTypeFloat64) {
		return DataTypeFloat64
	}

	// Bool or timestamp mixed with anything else degrades to string
	return DataTypeString
}

// InferTypeFromValue determines the DataType from a canonical Go value.
func InferTypeFromValue(value any) DataType {
	if value == nil {
		return DataTypeNull
	}

	switch value.(type) {
	case bool:
		return DataTypeBool
	case int64:
		return DataTypeInt64
	case float64:
		// A float observation stays a float even when the value happens
		// to be integral: a CSV cell "2.0" declares a float column. JSON
		// integers never reach here; flattening decodes them as int64.
		return DataTypeFloat64
	case string:
		return DataTypeString
	case time.Time:
		return DataTypeTimestamp
	case []byte:
		return DataTypeBytes
	default:
		return DataTypeAny
	}
}

// SchemaBuilder accumulates value observations per column and produces a
// Schema with promoted types, in first-seen column order.
type SchemaBuilder struct {
	schema *Schema
}

// NewSchemaBuilder creates a new schema builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{schema: NewSchema()}
}

// AddValue records a value observation for a column.
func (b *SchemaBuilder) AddValue(column string, value any) {
	b.schema.AddColumn(column, InferTypeFromValue(value))
}

// AddColumn records a column with an explicit type.
func (b *SchemaBuilder) AddColumn(column string, dataType DataType) {
	b.schema.AddColumn(column, dataType)
}

// AddRow records every value in a row.
func (b *SchemaBuilder) AddRow(row Row) {
	for name, value := range row {
		b.AddValue(name, value)
	}
}

// Build returns the accumulated schema. The builder keeps ownership; do
// not mutate the builder after Build.
func (b *SchemaBuilder) Build() *Schema {
	return b.schema
}
