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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPromoteType(t *testing.T) {
	tests := []struct {
		name string
		a, b DataType
		want DataType
	}{
		{"same type", DataTypeInt64, DataTypeInt64, DataTypeInt64},
		{"unknown yields other", DataTypeUnknown, DataTypeBool, DataTypeBool},
		{"null yields other", DataTypeNull, DataTypeFloat64, DataTypeFloat64},
		{"int widens to float", DataTypeInt64, DataTypeFloat64, DataTypeFloat64},
		{"float absorbs int", DataTypeFloat64, DataTypeInt64, DataTypeFloat64},
		{"string dominates int", DataTypeString, DataTypeInt64, DataTypeString},
		{"string dominates timestamp", DataTypeTimestamp, DataTypeString, DataTypeString},
		{"bytes with string", DataTypeBytes, DataTypeString, DataTypeString},
		{"bool with int degrades", DataTypeBool, DataTypeInt64, DataTypeString},
		{"timestamp with float degrades", DataTypeTimestamp, DataTypeFloat64, DataTypeString},
		{"any dominates", DataTypeAny, DataTypeInt64, DataTypeAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PromoteType(tt.a, tt.b))
		})
	}
}

func TestInferTypeFromValue(t *testing.T) {
	assert.Equal(t, DataTypeNull, InferTypeFromValue(nil))
	assert.Equal(t, DataTypeBool, InferTypeFromValue(true))
	assert.Equal(t, DataTypeInt64, InferTypeFromValue(int64(42)))
	assert.Equal(t, DataTypeFloat64, InferTypeFromValue(float64(3)))
	assert.Equal(t, DataTypeFloat64, InferTypeFromValue(3.5))
	assert.Equal(t, DataTypeString, InferTypeFromValue("x"))
	assert.Equal(t, DataTypeTimestamp, InferTypeFromValue(time.Now()))
	assert.Equal(t, DataTypeBytes, InferTypeFromValue([]byte{1}))
}

func TestSchemaOrderAndPromotion(t *testing.T) {
	b := NewSchemaBuilder()
	b.AddValue("a", int64(1))
	b.AddValue("b", "x")
	b.AddValue("a", 1.5)
	b.AddValue("c", nil)
	b.AddValue("c", true)

	s := b.Build()
	assert.Equal(t, []string{"a", "b", "c"}, s.ColumnNames())
	assert.Equal(t, DataTypeFloat64, s.ColumnType("a"))
	assert.Equal(t, DataTypeString, s.ColumnType("b"))
	assert.Equal(t, DataTypeBool, s.ColumnType("c"))
	assert.False(t, s.HasColumn("d"))
}

func TestCanonicalTag(t *testing.T) {
	assert.Equal(t, "integer", DataTypeInt64.CanonicalTag())
	assert.Equal(t, "float", DataTypeFloat64.CanonicalTag())
	assert.Equal(t, "boolean", DataTypeBool.CanonicalTag())
	assert.Equal(t, "string", DataTypeString.CanonicalTag())
	assert.Equal(t, "string", DataTypeBytes.CanonicalTag())
	assert.Equal(t, "timestamp", DataTypeTimestamp.CanonicalTag())
	assert.Equal(t, "null", DataTypeNull.CanonicalTag())
	assert.Equal(t, "mixed", DataTypeAny.CanonicalTag())
}
