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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderCell(t *testing.T) {
	assert.Equal(t, "", RenderCell(nil))
	assert.Equal(t, "hello", RenderCell("hello"))
	assert.Equal(t, "true", RenderCell(true))
	assert.Equal(t, "false", RenderCell(false))
	assert.Equal(t, "-42", RenderCell(int64(-42)))
	assert.Equal(t, "3.25", RenderCell(3.25))
	assert.Equal(t, "0.1", RenderCell(0.1))
	assert.Equal(t, "AQI=", RenderCell([]byte{0x01, 0x02}))

	when := time.Date(2025, 6, 1, 12, 30, 0, 500000000, time.UTC)
	assert.Equal(t, "2025-06-01T12:30:00.500Z", RenderCell(when))
}

func TestJSONValue(t *testing.T) {
	when := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-01T12:30:00.000Z", JSONValue(when))
	assert.Equal(t, "AQI=", JSONValue([]byte{0x01, 0x02}))
	assert.Equal(t, int64(7), JSONValue(int64(7)))
	assert.Nil(t, JSONValue(nil))
}
