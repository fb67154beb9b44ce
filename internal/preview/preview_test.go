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

package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tableconv/internal/formats"
)

func stageFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func TestExtractCSV(t *testing.T) {
	path := stageFile(t, "in.csv", []byte("name,count\nalpha,1\nbeta,2\n"))

	res, err := Extract(t.Context(), path, formats.CSV, Options{})
	require.NoError(t, err)

	assert.Equal(t, "csv", res.Format)
	require.Len(t, res.Columns, 2)
	assert.Equal(t, Column{Name: "name", Type: "string"}, res.Columns[0])
	assert.Equal(t, Column{Name: "count", Type: "integer"}, res.Columns[1])

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "alpha", res.Rows[0]["name"])
	assert.Equal(t, int64(1), res.Rows[0]["count"])
}

func TestExtractCSVRowCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	path := stageFile(t, "in.csv", []byte(sb.String()))

	res, err := Extract(t.Context(), path, formats.CSV, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, DefaultMaxRows)

	res, err = Extract(t.Context(), path, formats.CSV, Options{MaxRows: 5})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)

	// Requests above the cap clamp back down.
	res, err = Extract(t.Context(), path, formats.CSV, Options{MaxRows: 500})
	require.NoError(t, err)
	assert.Len(t, res.Rows, DefaultMaxRows)
}

func TestExtractNDJSON(t *testing.T) {
	path := stageFile(t, "in.ndjson", []byte(
		`{"a": 1, "user": {"name": "x"}}`+"\n"+
			`{"a": 2.5}`+"\n"))

	res, err := Extract(t.Context(), path, formats.NDJSON, Options{})
	require.NoError(t, err)

	assert.Equal(t, "ndjson", res.Format)
	require.Len(t, res.Columns, 2)
	assert.Equal(t, Column{Name: "a", Type: "float"}, res.Columns[0])
	assert.Equal(t, Column{Name: "user.name", Type: "string"}, res.Columns[1])

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "x", res.Rows[0]["user.name"])
	// Second row lacks user.name; it renders as null
	assert.Nil(t, res.Rows[1]["user.name"])
	assert.Contains(t, res.Rows[1], "user.name")
}

func TestExtractParquet(t *testing.T) {
	type record struct {
		Count int64  `parquet:"count"`
		Name  string `parquet:"name"`
	}
	path := filepath.Join(t.TempDir(), "in.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[record](f)
	_, err = w.Write([]record{{Count: 1, Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	res, err := Extract(t.Context(), path, formats.Parquet, Options{})
	require.NoError(t, err)

	assert.Equal(t, "parquet", res.Format)
	require.Len(t, res.Columns, 2)
	assert.Equal(t, Column{Name: "count", Type: "integer"}, res.Columns[0])
	assert.Equal(t, Column{Name: "name", Type: "string"}, res.Columns[1])
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alpha", res.Rows[0]["name"])
}

func TestExtractMalformed(t *testing.T) {
	path := stageFile(t, "bad.parquet", []byte("not parquet at all, truly not"))
	_, err := Extract(t.Context(), path, formats.Parquet, Options{})
	assert.Error(t, err)

	_, err = Extract(t.Context(), path, formats.Unknown, Options{})
	assert.Error(t, err)
}
