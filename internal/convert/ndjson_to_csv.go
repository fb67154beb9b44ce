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
	"github.com/cardinalhq/tableconv/internal/rowcodec"
	"github.com/cardinalhq/tableconv/internal/scratch"
)

// ndjsonToCSV converts newline-delimited JSON to CSV. The header is the
// union of flattened keys over the leading sample window, in first-seen
// order; keys that only appear later are dropped. Prime spills the
// window rows to a CBOR scratch file so Run can emit the header before
// replaying them and then streaming the remainder of the input.
type ndjsonToCSV struct {
	inputPath string
	mgr       *scratch.Manager
	opts      Options

	reader  *filereader.JSONLinesReader
	header  []string
	spill   *scratch.Resource
	spilled int64
}

func newNDJSONToCSV(inputPath string, mgr *scratch.Manager, opts Options) *ndjsonToCSV {
	return &ndjsonToCSV{inputPath: inputPath, mgr: mgr, opts: opts}
}

func (c *ndjsonToCSV) Prime(ctx context.Context) error {
	f, err := os.Open(c.inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	reader, err := filereader.NewJSONLinesReader(f, c.opts.BatchRows)
	if err != nil {
		_ = f.Close()
		return err
	}
	// The header must close after exactly SampleRows rows even when a
	// batch straddles the boundary.
	reader.LimitKeyDiscovery(c.opts.SampleRows)
	c.reader = reader

	spill, err := c.mgr.Acquire(".cbor")
	if err != nil {
		return fmt.Errorf("acquire spill file: %w", err)
	}
	c.spill = spill

	spillFile, err := spill.Create()
	if err != nil {
		return fmt.Errorf("open spill file: %w", err)
	}
	defer func() { _ = spillFile.Close() }()

	codec, err := rowcodec.New()
	if err != nil {
		return err
	}
	enc := codec.NewEncoder(spillFile)

	for c.spilled < int64(c.opts.SampleRows) {
		batch, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		for i := 0; i < batch.Len(); i++ {
			if err := enc.Encode(batch.Get(i)); err != nil {
				return fmt.Errorf("spill row: %w", err)
			}
			c.spilled++
		}
	}

	c.header = reader.KeysSeen()
	if len(c.header) == 0 {
		return fmt.Errorf("%w: no keys found in input", ErrSchemaInference)
	}
	return nil
}

func (c *ndjsonToCSV) Run(ctx context.Context, w io.Writer) error {
	if c.header == nil || c.spill == nil {
		return errors.New("conversion not primed")
	}

	cw, err := filewriter.NewCSVWriter(w, c.header)
	if err != nil {
		return err
	}

	spillFile, err := c.spill.Open()
	if err != nil {
		return fmt.Errorf("reopen spill file: %w", err)
	}
	defer func() { _ = spillFile.Close() }()

	codec, err := rowcodec.New()
	if err != nil {
		return err
	}
	dec := codec.NewDecoder(spillFile)

	batch := filereader.NewBatch(c.opts.BatchRows)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := make(filereader.Row)
		if err := dec.Decode(row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		batch.Append(row)

		if batch.Len() >= c.opts.BatchRows {
			if err := cw.WriteBatch(ctx, batch); err != nil {
				return err
			}
			batch = filereader.NewBatch(c.opts.BatchRows)
		}
	}
	if batch.Len() > 0 {
		if err := cw.WriteBatch(ctx, batch); err != nil {
			return err
		}
	}

	// Stream the rest of the input directly; keys first seen past the
	// window are not in the header and render nowhere.
	for {
		batch, err := c.reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := cw.WriteBatch(ctx, batch); err != nil {
			return err
		}
	}

	return cw.Close()
}

func (c *ndjsonToCSV) Close() error {
	var errs []error
	if c.reader != nil {
		errs = append(errs, c.reader.Close())
		c.reader = nil
	}
	if c.spill != nil {
		errs = append(errs, c.spill.Release())
		c.spill = nil
	}
	return errors.Join(errs...)
}
