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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cardinalhq/tableconv/internal/filereader"
	"github.com/cardinalhq/tableconv/internal/filewriter"
)

// csvToNDJSON streams CSV rows out as JSON objects, one per line, with
// keys in header order. Dot-joined header names rebuild into nested
// objects. Prime reads the first batch so malformed leading records
// fail before any output exists.
type csvToNDJSON struct {
	inputPath string
	opts      Options

	reader   *filereader.CSVReader
	primed   *filereader.Batch
	primeEOF bool
}

func newCSVToNDJSON(inputPath string, opts Options) *csvToNDJSON {
	return &csvToNDJSON{inputPath: inputPath, opts: opts}
}

func (c *csvToNDJSON) Prime(ctx context.Context) error {
	f, err := os.Open(c.inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	reader, err := filereader.NewCSVReader(f, c.opts.BatchRows)
	if err != nil {
		return err
	}
	c.reader = reader

	batch, err := reader.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.primeEOF = true
			return nil
		}
		return err
	}
	c.primed = batch
	return nil
}

func (c *csvToNDJSON) Run(ctx context.Context, w io.Writer) error {
	if c.reader == nil {
		return errors.New("conversion not primed")
	}

	nw, err := filewriter.NewNDJSONWriter(w, c.reader.Headers())
	if err != nil {
		return err
	}

	if c.primed != nil {
		if err := nw.WriteBatch(ctx, c.primed); err != nil {
			return err
		}
		c.primed = nil
	}

	for !c.primeEOF {
		batch, err := c.reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := nw.WriteBatch(ctx, batch); err != nil {
			return err
		}
	}

	return nw.Close()
}

func (c *csvToNDJSON) Close() error {
	if c.reader != nil {
		err := c.reader.Close()
		c.reader = nil
		return err
	}
	return nil
}
