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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tableconv/internal/filereader"
)

func buildTestSchema(cols ...filereader.ColumnSchema) *filereader.Schema {
	s := filereader.NewSchema()
	for _, c := range cols {
		s.AddColumn(c.Name, c.DataType)
	}
	return s
}

func TestParquetWriterRoundTrip(t *testing.T) {
	schema := buildTestSchema(
		filereader.ColumnSchema{Name: "name", DataType: filereader.DataTypeString},
		filereader.ColumnSchema{Name: "count", DataType: filereader.DataTypeInt64},
		filereader.ColumnSchema{Name: "at", DataType: filereader.DataTypeTimestamp},
	)

	path := filepath.Join(t.TempDir(), "out.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := NewParquetWriter(f, schema, t.TempDir())
	require.NoError(t, err)

	when := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	batch := filereader.NewBatch(2)
	r1 := batch.AddRow()
	r1["name"] = "alpha"
	r1["count"] = int64(7)
	r1["at"] = when
	r2 := batch.AddRow()
	r2["name"] = "beta"
	// count and at missing, become nulls

	require.NoError(t, w.WriteBatch(t.Context(), batch))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, int64(2), w.RowsWritten())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r, err := filereader.NewParquetReader(bytes.NewReader(data), int64(len(data)), 10)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, filereader.DataTypeTimestamp, r.Schema().ColumnType("at"))
	assert.Equal(t, filereader.DataTypeInt64, r.Schema().ColumnType("count"))

	rows, err := filereader.ReadAll(t.Context(), r)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byName := map[string]filereader.Row{}
	for _, row := range rows {
		byName[row["name"].(string)] = row
	}

	assert.Equal(t, int64(7), byName["alpha"]["count"])
	got, ok := byName["alpha"]["at"].(time.Time)
	require.True(t, ok)
	assert.True(t, when.Equal(got))

	assert.Nil(t, byName["beta"]["count"])
	assert.Nil(t, byName["beta"]["at"])
}

func TestParquetWriterEmptySchema(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewParquetWriter(&buf, filereader.NewSchema(), t.TempDir())
	assert.Error(t, err)
}

func TestCoerceToColumn(t *testing.T) {
	assert.Nil(t, coerceToColumn(nil, filereader.DataTypeString))
	assert.Equal(t, int64(3), coerceToColumn(float64(3), filereader.DataTypeInt64))
	assert.Nil(t, coerceToColumn(3.5, filereader.DataTypeInt64))
	assert.Equal(t, float64(3), coerceToColumn(int64(3), filereader.DataTypeFloat64))
	assert.Nil(t, coerceToColumn("x", filereader.DataTypeBool))
	// String columns absorb anything
	assert.Equal(t, "42", coerceToColumn(int64(42), filereader.DataTypeString))
	assert.Equal(t, "true", coerceToColumn(true, filereader.DataTypeString))
}
