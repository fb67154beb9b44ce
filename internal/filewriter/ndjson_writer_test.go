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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tableconv/internal/filereader"
)

func TestNDJSONWriterKeyOrderAndNesting(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewNDJSONWriter(&buf, []string{"zebra", "user.name", "user.age", "apple"})
	require.NoError(t, err)

	batch := filereader.NewBatch(1)
	row := batch.AddRow()
	row["zebra"] = int64(1)
	row["user.name"] = "a"
	row["user.age"] = int64(30)
	row["apple"] = true

	require.NoError(t, w.WriteBatch(t.Context(), batch))
	require.NoError(t, w.Close())

	assert.Equal(t, `{"zebra":1,"user":{"name":"a","age":30},"apple":true}`+"\n", buf.String())
}

func TestNDJSONWriterMissingColumnsAreNull(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewNDJSONWriter(&buf, []string{"a", "b"})
	require.NoError(t, err)

	batch := filereader.NewBatch(1)
	row := batch.AddRow()
	row["a"] = "x"

	require.NoError(t, w.WriteBatch(t.Context(), batch))
	require.NoError(t, w.Close())

	assert.Equal(t, `{"a":"x","b":null}`+"\n", buf.String())
	assert.Equal(t, int64(1), w.RowsWritten())
}

func TestNDJSONWriterEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewNDJSONWriter(&buf, []string{"a"})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Empty(t, buf.String())
}
