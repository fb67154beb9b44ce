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

package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tableconv/internal/filereader"
	"github.com/cardinalhq/tableconv/internal/formats"
	"github.com/cardinalhq/tableconv/internal/scratch"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("csv-to-parquet")
	require.NoError(t, err)
	assert.Equal(t, KindCSVToParquet, k)
	assert.Equal(t, formats.CSV, k.Source())
	assert.Equal(t, formats.Parquet, k.Target())

	_, err = ParseKind("parquet-to-ndjson")
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = ParseKind("csv-to-csv")
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func newTestManager(t *testing.T) *scratch.Manager {
	t.Helper()
	mgr, err := scratch.NewManager(t.TempDir())
	require.NoError(t, err)
	return mgr
}

func stageInput(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

// runConversion primes and runs a conversion, returning the output bytes.
func runConversion(t *testing.T, kind Kind, inputPath string, opts Options) []byte {
	t.Helper()
	mgr := newTestManager(t)

	conv, err := New(kind, inputPath, mgr, opts)
	require.NoError(t, err)
	defer func() { _ = conv.Close() }()

	require.NoError(t, conv.Prime(t.Context()))

	var out bytes.Buffer
	require.NoError(t, conv.Run(t.Context(), &out))
	return out.Bytes()
}

func TestCSVToParquetRoundTrip(t *testing.T) {
	input := stageInput(t, "in.csv", []byte("count,name,ratio\n1,alpha,0.5\n2,beta,\n"))
	data := runConversion(t, KindCSVToParquet, input, Options{})

	r, err := filereader.NewParquetReader(bytes.NewReader(data), int64(len(data)), 10)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, filereader.DataTypeInt64, r.Schema().ColumnType("count"))
	assert.Equal(t, filereader.DataTypeString, r.Schema().ColumnType("name"))
	assert.Equal(t, filereader.DataTypeFloat64, r.Schema().ColumnType("ratio"))

	rows, err := filereader.ReadAll(t.Context(), r)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["count"])
	assert.Equal(t, "alpha", rows[0]["name"])
	assert.Equal(t, 0.5, rows[0]["ratio"])
	assert.Nil(t, rows[1]["ratio"])
}

func TestConversionIdempotence(t *testing.T) {
	csvIn := stageInput(t, "in.csv", []byte("count,name\n1,alpha\n2,beta\n"))
	ndjsonIn := stageInput(t, "in.ndjson", []byte(
		`{"a": 1}`+"\n"+
			`{"a": 2, "b": "x"}`+"\n"))

	parquetData := runConversion(t, KindCSVToParquet, csvIn, Options{})
	parquetIn := stageInput(t, "in.parquet", parquetData)

	cases := []struct {
		kind  Kind
		input string
	}{
		{KindCSVToParquet, csvIn},
		{KindCSVToNDJSON, csvIn},
		{KindNDJSONToCSV, ndjsonIn},
		{KindParquetToCSV, parquetIn},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			first := runConversion(t, tc.kind, tc.input, Options{})
			second := runConversion(t, tc.kind, tc.input, Options{})
			assert.Equal(t, first, second, "same input must convert to identical bytes")
		})
	}
}

func TestCSVToParquetIntegralFloatStaysFloat(t *testing.T) {
	input := stageInput(t, "in.csv", []byte("v\n2.0\n3.5\n"))
	data := runConversion(t, KindCSVToParquet, input, Options{})

	r, err := filereader.NewParquetReader(bytes.NewReader(data), int64(len(data)), 10)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// "2.0" declares a float column; the integral value must not narrow
	// the column to int64.
	assert.Equal(t, filereader.DataTypeFloat64, r.Schema().ColumnType("v"))
	rows, err := filereader.ReadAll(t.Context(), r)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2.0, rows[0]["v"])
	assert.Equal(t, 3.5, rows[1]["v"])
}

func TestCSVToParquetMixedColumnDegradesToString(t *testing.T) {
	input := stageInput(t, "in.csv", []byte("v\n1\n2\nx\n4\n"))
	data := runConversion(t, KindCSVToParquet, input, Options{})

	r, err := filereader.NewParquetReader(bytes.NewReader(data), int64(len(data)), 10)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, filereader.DataTypeString, r.Schema().ColumnType("v"))

	rows, err := filereader.ReadAll(t.Context(), r)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "1", rows[0]["v"])
	assert.Equal(t, "x", rows[2]["v"])
}

func TestCSVToParquetHeaderOnly(t *testing.T) {
	input := stageInput(t, "in.csv", []byte("a,b\n"))
	mgr := newTestManager(t)

	conv, err := New(KindCSVToParquet, input, mgr, Options{})
	require.NoError(t, err)
	defer func() { _ = conv.Close() }()

	assert.ErrorIs(t, conv.Prime(t.Context()), ErrSchemaInference)
}

func TestParquetToCSV(t *testing.T) {
	// Build a parquet file by converting CSV first, then convert it back.
	csvIn := stageInput(t, "in.csv", []byte("count,name\n1,alpha\n2,beta\n"))
	parquetBytes := runConversion(t, KindCSVToParquet, csvIn, Options{})
	parquetIn := stageInput(t, "in.parquet", parquetBytes)

	out := runConversion(t, KindParquetToCSV, parquetIn, Options{})
	assert.Equal(t, "count,name\n1,alpha\n2,beta\n", string(out))
}

func TestParquetToCSVNotParquet(t *testing.T) {
	input := stageInput(t, "bad.parquet", []byte("definitely not parquet data, no magic here"))
	mgr := newTestManager(t)

	conv, err := New(KindParquetToCSV, input, mgr, Options{})
	require.NoError(t, err)
	defer func() { _ = conv.Close() }()

	assert.Error(t, conv.Prime(t.Context()))
}

func TestNDJSONToCSVKeyUnion(t *testing.T) {
	input := stageInput(t, "in.ndjson", []byte(
		`{"a": 1, "b": "x"}`+"\n"+
			`{"a": 2, "c": true}`+"\n"))

	out := runConversion(t, KindNDJSONToCSV, input, Options{})
	assert.Equal(t, "a,b,c\n1,x,\n2,,true\n", string(out))
}

func TestNDJSONToCSVLateKeysDropped(t *testing.T) {
	input := stageInput(t, "in.ndjson", []byte(
		`{"a": 1}`+"\n"+
			`{"a": 2, "late": "x"}`+"\n"))

	// Window of one row: "late" never makes the header.
	out := runConversion(t, KindNDJSONToCSV, input, Options{SampleRows: 1})
	assert.Equal(t, "a\n1\n2\n", string(out))
}

func TestNDJSONToCSVNested(t *testing.T) {
	input := stageInput(t, "in.ndjson", []byte(`{"user": {"name": "a"}, "tags": [1, 2]}`+"\n"))
	out := runConversion(t, KindNDJSONToCSV, input, Options{})
	assert.Equal(t, "user.name,tags\na,\"[1,2]\"\n", string(out))
}

func TestNDJSONToCSVNoKeys(t *testing.T) {
	input := stageInput(t, "in.ndjson", []byte("\n\n"))
	mgr := newTestManager(t)

	conv, err := New(KindNDJSONToCSV, input, mgr, Options{})
	require.NoError(t, err)
	defer func() { _ = conv.Close() }()

	assert.ErrorIs(t, conv.Prime(t.Context()), ErrSchemaInference)
}

func TestNDJSONToCSVMalformedLine(t *testing.T) {
	input := stageInput(t, "in.ndjson", []byte(`{"a": 1}`+"\n"+`{broken`+"\n"))
	mgr := newTestManager(t)

	conv, err := New(KindNDJSONToCSV, input, mgr, Options{})
	require.NoError(t, err)
	defer func() { _ = conv.Close() }()

	assert.ErrorIs(t, conv.Prime(t.Context()), filereader.ErrParse)
}

func TestCSVToNDJSON(t *testing.T) {
	input := stageInput(t, "in.csv", []byte("name,count,ok\nalpha,1,true\nbeta,,false\n"))
	out := runConversion(t, KindCSVToNDJSON, input, Options{})

	want := `{"name":"alpha","count":1,"ok":true}` + "\n" +
		`{"name":"beta","count":null,"ok":false}` + "\n"
	assert.Equal(t, want, string(out))
}

func TestCSVToNDJSONNestedHeaders(t *testing.T) {
	input := stageInput(t, "in.csv", []byte("user.name,user.age\na,30\n"))
	out := runConversion(t, KindCSVToNDJSON, input, Options{})
	assert.Equal(t, `{"user":{"name":"a","age":30}}`+"\n", string(out))
}

func TestConversionSpillCleanup(t *testing.T) {
	root := t.TempDir()
	mgr, err := scratch.NewManager(root)
	require.NoError(t, err)

	input := stageInput(t, "in.csv", []byte("a\n1\n"))
	conv, err := New(KindCSVToParquet, input, mgr, Options{})
	require.NoError(t, err)

	require.NoError(t, conv.Prime(t.Context()))

	var out bytes.Buffer
	require.NoError(t, conv.Run(t.Context(), &out))
	require.NoError(t, conv.Close())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "spill files must be released on Close")
}
