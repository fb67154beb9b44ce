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

package rowcodec

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripCanonicalValues(t *testing.T) {
	codec, err := New()
	require.NoError(t, err)

	when := time.Date(2025, 6, 1, 12, 30, 0, 500000000, time.UTC)
	row := map[string]any{
		"s":  "hello",
		"i":  int64(-42),
		"f":  3.25,
		"b":  true,
		"t":  when,
		"by": []byte{0x01, 0x02},
		"n":  nil,
	}

	data, err := codec.Encode(row)
	require.NoError(t, err)

	got := make(map[string]any)
	require.NoError(t, codec.Decode(data, got))

	assert.Equal(t, "hello", got["s"])
	assert.Equal(t, int64(-42), got["i"])
	assert.Equal(t, 3.25, got["f"])
	assert.Equal(t, true, got["b"])
	assert.Equal(t, []byte{0x01, 0x02}, got["by"])
	assert.Nil(t, got["n"])

	ts, ok := got["t"].(time.Time)
	require.True(t, ok, "timestamp should decode as time.Time, got %T", got["t"])
	assert.True(t, when.Equal(ts))
}

func TestDecodeClearsTarget(t *testing.T) {
	codec, err := New()
	require.NoError(t, err)

	data, err := codec.Encode(map[string]any{"a": int64(1)})
	require.NoError(t, err)

	into := map[string]any{"stale": "value"}
	require.NoError(t, codec.Decode(data, into))
	assert.NotContains(t, into, "stale")
	assert.Equal(t, int64(1), into["a"])
}

func TestStreamingEncodeDecode(t *testing.T) {
	codec, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	for i := 0; i < 3; i++ {
		require.NoError(t, enc.Encode(map[string]any{"i": int64(i)}))
	}

	dec := codec.NewDecoder(&buf)
	row := make(map[string]any)
	for i := 0; i < 3; i++ {
		require.NoError(t, dec.Decode(row))
		assert.Equal(t, int64(i), row["i"])
	}
	assert.Equal(t, io.EOF, dec.Decode(row))
}
