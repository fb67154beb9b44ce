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

package formats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func writeTestParquet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	type record struct {
		Name  string `parquet:"name"`
		Count int64  `parquet:"count"`
	}
	w := parquet.NewGenericWriter[record](f)
	_, err = w.Write([]record{{Name: "a", Count: 1}, {Name: "b", Count: 2}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDetectParquet(t *testing.T) {
	path := writeTestParquet(t)
	assert.NoError(t, Detect(path, Parquet))

	// CSV bytes declared as parquet must be rejected.
	csvPath := writeTemp(t, "x.parquet", []byte("a,b\n1,2\n"))
	err := Detect(csvPath, Parquet)
	assert.ErrorIs(t, err, ErrFormatMismatch)

	// Truncated header magic only.
	shortPath := writeTemp(t, "short.parquet", []byte("PAR1"))
	assert.ErrorIs(t, Detect(shortPath, Parquet), ErrFormatMismatch)
}

func TestDetectCSV(t *testing.T) {
	ok := writeTemp(t, "rows.csv", []byte("name,count\nalpha,1\n"))
	assert.NoError(t, Detect(ok, CSV))

	// Single-column CSV is still CSV.
	single := writeTemp(t, "one.csv", []byte("name\nalpha\n"))
	assert.NoError(t, Detect(single, CSV))

	parquetPath := writeTestParquet(t)
	assert.ErrorIs(t, Detect(parquetPath, CSV), ErrFormatMismatch)

	ndjsonBytes := writeTemp(t, "x.csv", []byte(`{"a": 1}`+"\n"))
	assert.ErrorIs(t, Detect(ndjsonBytes, CSV), ErrFormatMismatch)

	empty := writeTemp(t, "empty.csv", nil)
	assert.ErrorIs(t, Detect(empty, CSV), ErrFormatMismatch)
}

func TestDetectNDJSON(t *testing.T) {
	ok := writeTemp(t, "e.ndjson", []byte(`{"a": 1, "b": "x"}`+"\n"+`{"a": 2}`+"\n"))
	assert.NoError(t, Detect(ok, NDJSON))

	// Leading blank lines are tolerated.
	blanks := writeTemp(t, "b.ndjson", []byte("\n\n"+`{"a": 1}`+"\n"))
	assert.NoError(t, Detect(blanks, NDJSON))

	csvBytes := writeTemp(t, "x.ndjson", []byte("a,b\n1,2\n"))
	assert.ErrorIs(t, Detect(csvBytes, NDJSON), ErrFormatMismatch)

	// A bare JSON array is not a stream of objects.
	arr := writeTemp(t, "arr.ndjson", []byte(`[1, 2, 3]`+"\n"))
	assert.ErrorIs(t, Detect(arr, NDJSON), ErrFormatMismatch)

	empty := writeTemp(t, "empty.ndjson", nil)
	assert.ErrorIs(t, Detect(empty, NDJSON), ErrFormatMismatch)
}
