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
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout renders timestamps with millisecond precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// RenderCell renders a canonical value as a CSV cell. Nil renders as the
// empty cell; floats use the shortest round-trip form.
func RenderCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.UTC().Format(TimestampLayout)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// JSONValue converts a canonical value into its JSON-representable form:
// timestamps become RFC 3339 strings, byte strings become base64.
// Everything else passes through for encoding/json to render.
func JSONValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(TimestampLayout)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return value
	}
}
