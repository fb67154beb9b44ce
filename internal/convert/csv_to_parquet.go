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
	"path/filepath"

	"github.com/cardinalhq/tableconv/internal/filereader"
	"github.com/cardinalhq/tableconv/internal/filewriter"
	"github.com/cardinalhq/tableconv/internal/rowcodec"
	"github.com/cardinalhq/tableconv/internal/scratch"
)

// csvToParquet converts CSV to parquet in two phases. Prime reads the
// whole input, spilling decoded rows to a CBOR scratch file while it
// settles the column types: within the leading sample window types
// promote freely, after it any disagreement degrades the column to
// string. Run replays the spill through a parquet writer, so the
// parquet schema is final before the first output byte.
type csvToParquet struct {
	inputPath string
	mgr       *scratch.Manager
	opts      Options

	schema *filereader.Schema
	spill  *scratch.Resource
	rows   int64
}

func newCSVToParquet(inputPath string, mgr *scratch.Manager, opts Options) *csvToParquet {
	return &csvToParquet{inputPath: inputPath, mgr: mgr, opts: opts}
}

func (c *csvToParquet) Prime(ctx context.Context) error {
	f, err := os.Open(c.inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	reader, err := filereader.NewCSVReader(f, c.opts.BatchRows)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

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

	schema := filereader.NewSchema()
	for _, name := range reader.Headers() {
		schema.AddColumn(name, filereader.DataTypeUnknown)
	}

	for {
		batch, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		for i := 0; i < batch.Len(); i++ {
			row := batch.Get(i)
			c.observeRow(schema, row)
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("spill row: %w", err)
			}
			c.rows++
		}
	}

	if c.rows == 0 {
		return fmt.Errorf("%w: CSV input has no data rows", ErrSchemaInference)
	}

	c.schema = schema
	return nil
}

// observeRow merges one row's value types into the schema. Inside the
// sample window PromoteType applies as-is; afterwards a type that would
// change the column degrades it straight to string.
func (c *csvToParquet) observeRow(schema *filereader.Schema, row filereader.Row) {
	inWindow := c.rows < int64(c.opts.SampleRows)
	for name, value := range row {
		vt := filereader.InferTypeFromValue(value)
		have := schema.ColumnType(name)
		want := filereader.PromoteType(have, vt)
		if want == have {
			continue
		}
		if inWindow {
			schema.SetColumnType(name, want)
			continue
		}
		schema.SetColumnType(name, filereader.DataTypeString)
	}
}

func (c *csvToParquet) Run(ctx context.Context, w io.Writer) error {
	if c.schema == nil || c.spill == nil {
		return errors.New("conversion not primed")
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

	pw, err := filewriter.NewParquetWriter(w, c.schema, filepath.Dir(c.spill.Path()))
	if err != nil {
		return err
	}

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
			if err := pw.WriteBatch(ctx, batch); err != nil {
				return err
			}
			batch = filereader.NewBatch(c.opts.BatchRows)
		}
	}

	if batch.Len() > 0 {
		if err := pw.WriteBatch(ctx, batch); err != nil {
			return err
		}
	}

	return pw.Close()
}

func (c *csvToParquet) Close() error {
	if c.spill != nil {
		err := c.spill.Release()
		c.spill = nil
		return err
	}
	return nil
}
