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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cardinalhq/tableconv/internal/filereader"
)

// NDJSONWriter renders rows as newline-delimited JSON objects. Dot-joined
// column paths rebuild into nested objects, and keys keep the column
// order instead of sorting alphabetically. Columns a row lacks render as
// JSON null.
type NDJSONWriter struct {
	w      *bufio.Writer
	fields *fieldTree
	rows   int64
	closed bool
}

var _ Writer = (*NDJSONWriter)(nil)

// fieldTree is the nested shape of the output object, built once from
// the column list so every row serializes with the same key order.
type fieldTree struct {
	keys     []string
	children map[string]*fieldTree
	column   string // full flattened path, leaf nodes only
	leaf     bool
}

func newFieldTree(columns []string) *fieldTree {
	root := &fieldTree{children: make(map[string]*fieldTree)}
	for _, col := range columns {
		node := root
		segments := strings.Split(col, filereader.FlattenSeparator)
		for i, seg := range segments {
			child, ok := node.children[seg]
			if !ok {
				child = &fieldTree{children: make(map[string]*fieldTree)}
				node.children[seg] = child
				node.keys = append(node.keys, seg)
			}
			if child.leaf {
				// A scalar column already claimed this path; the nested
				// column is unreachable and gets skipped.
				break
			}
			if i == len(segments)-1 {
				child.leaf = true
				child.column = col
			}
			node = child
		}
	}
	return root
}

// NewNDJSONWriter creates an NDJSON writer over w with the given column
// order.
func NewNDJSONWriter(w io.Writer, columns []string) (*NDJSONWriter, error) {
	if len(columns) == 0 {
		return nil, errors.New("NDJSON output requires at least one column")
	}
	return &NDJSONWriter{
		w:      bufio.NewWriter(w),
		fields: newFieldTree(columns),
	}, nil
}

func (w *NDJSONWriter) WriteBatch(ctx context.Context, batch *filereader.Batch) error {
	if w.closed {
		return errors.New("writer is closed")
	}

	for i := 0; i < batch.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.writeObject(w.fields, batch.Get(i)); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
		w.rows++
	}
	return nil
}

func (w *NDJSONWriter) writeObject(node *fieldTree, row filereader.Row) error {
	if err := w.w.WriteByte('{'); err != nil {
		return err
	}
	for i, key := range node.keys {
		if i > 0 {
			if err := w.w.WriteByte(','); err != nil {
				return err
			}
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return err
		}
		if _, err := w.w.Write(keyBytes); err != nil {
			return err
		}
		if err := w.w.WriteByte(':'); err != nil {
			return err
		}

		child := node.children[key]
		if child.leaf {
			valBytes, err := json.Marshal(JSONValue(row[child.column]))
			if err != nil {
				return fmt.Errorf("encode value for %q: %w", child.column, err)
			}
			if _, err := w.w.Write(valBytes); err != nil {
				return err
			}
			continue
		}
		if err := w.writeObject(child, row); err != nil {
			return err
		}
	}
	return w.w.WriteByte('}')
}

// RowsWritten returns the number of objects written.
func (w *NDJSONWriter) RowsWritten() int64 {
	return w.rows
}

func (w *NDJSONWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.w.Flush()
}
