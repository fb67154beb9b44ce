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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlattenSeparator joins the segments of a nested key path in flattened
// output, and is split on again when un-flattening.
const FlattenSeparator = "."

// FlatField is one flattened column of a JSON object, in document order.
type FlatField struct {
	Key   string
	Value any
}

// FlattenJSONObject parses one JSON object, flattening nested objects
// into dot-joined key paths and serializing arrays to compact JSON
// strings. Field order follows the document. Numbers decode to int64
// when integral, float64 otherwise.
func FlattenJSONObject(data []byte) ([]FlatField, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var fields []FlatField
	if err := flattenObject(dec, "", &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// flattenObject consumes object members up to and including the closing
// brace, appending flattened fields under the given key prefix.
func flattenObject(dec *json.Decoder, prefix string, out *[]FlatField) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok && delim == '}' {
			return nil
		}

		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		path := key
		if prefix != "" {
			path = prefix + FlattenSeparator + key
		}

		if err := flattenValue(dec, path, out); err != nil {
			return err
		}
	}
}

func flattenValue(dec *json.Decoder, path string, out *[]FlatField) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return flattenObject(dec, path, out)
		case '[':
			serialized, err := captureArray(dec)
			if err != nil {
				return err
			}
			*out = append(*out, FlatField{Key: path, Value: serialized})
			return nil
		default:
			return fmt.Errorf("unexpected delimiter %v", v)
		}
	case json.Number:
		*out = append(*out, FlatField{Key: path, Value: numberValue(v)})
		return nil
	case string:
		*out = append(*out, FlatField{Key: path, Value: v})
		return nil
	case bool:
		*out = append(*out, FlatField{Key: path, Value: v})
		return nil
	case nil:
		*out = append(*out, FlatField{Key: path, Value: nil})
		return nil
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
}

// captureArray re-serializes an array (whose opening bracket has been
// consumed) to a compact JSON string.
func captureArray(dec *json.Decoder) (string, error) {
	var elems []json.RawMessage
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return "", err
		}
		elems = append(elems, raw)
	}
	// Consume the closing bracket
	if _, err := dec.Token(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		compact := bytes.Buffer{}
		if err := json.Compact(&compact, e); err != nil {
			return "", err
		}
		buf.Write(compact.Bytes())
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		// Out-of-range numbers keep their textual form
		return n.String()
	}
	return f
}

// UnflattenRow rebuilds a nested object from dot-joined key paths, in the
// given key order. Keys without a separator stay top-level; a path
// segment conflict (scalar where an object is needed) keeps the scalar
// and drops the late-arriving nested value.
func UnflattenRow(row Row, order []string) map[string]any {
	out := make(map[string]any, len(order))
	for _, key := range order {
		value, ok := row[key]
		if !ok {
			continue
		}
		segments := strings.Split(key, FlattenSeparator)
		node := out
		for i, seg := range segments {
			if i == len(segments)-1 {
				node[seg] = value
				break
			}
			next, exists := node[seg]
			if !exists {
				child := make(map[string]any)
				node[seg] = child
				node = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				break
			}
			node = child
		}
	}
	return out
}
