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

func TestCSVWriterBasic(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf, []string{"name", "count"})
	require.NoError(t, err)

	batch := filereader.NewBatch(2)
	r1 := batch.AddRow()
	r1["name"] = "alpha"
	r1["count"] = int64(1)
	r2 := batch.AddRow()
	r2["name"] = "beta, maybe"
	// count missing from r2, renders as empty cell

	require.NoError(t, w.WriteBatch(t.Context(), batch))
	require.NoError(t, w.Close())

	assert.Equal(t, "name,count\nalpha,1\n\"beta, maybe\",\n", buf.String())
	assert.Equal(t, int64(2), w.RowsWritten())
}

func TestCSVWriterHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "a,b\n", buf.String())
	assert.Equal(t, int64(0), w.RowsWritten())
}

func TestCSVWriterNoColumns(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewCSVWriter(&buf, nil)
	assert.Error(t, err)
}
