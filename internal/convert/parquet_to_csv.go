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

// parquetToCSV streams a parquet file out as CSV. The header comes from
// the file's declared field order, so Prime only has to open the file
// and read the first batch to catch corrupt inputs.
type parquetToCSV struct {
	inputPath string
	opts      Options

	file     *os.File
	reader   *filereader.ParquetReader
	primed   *filereader.Batch
	primeEOF bool
}

func newParquetToCSV(inputPath string, opts Options) *parquetToCSV {
	return &parquetToCSV{inputPath: inputPath, opts: opts}
}

func (c *parquetToCSV) Prime(ctx context.Context) error {
	f, err := os.Open(c.inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat input: %w", err)
	}

	reader, err := filereader.NewParquetReader(f, st.Size(), c.opts.BatchRows)
	if err != nil {
		_ = f.Close()
		return err
	}
	c.file = f
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

func (c *parquetToCSV) Run(ctx context.Context, w io.Writer) error {
	if c.reader == nil {
		return errors.New("conversion not primed")
	}

	cw, err := filewriter.NewCSVWriter(w, c.reader.Schema().ColumnNames())
	if err != nil {
		return err
	}

	if c.primed != nil {
		if err := cw.WriteBatch(ctx, c.primed); err != nil {
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
		if err := cw.WriteBatch(ctx, batch); err != nil {
			return err
		}
	}

	return cw.Close()
}

func (c *parquetToCSV) Close() error {
	var errs []error
	if c.reader != nil {
		errs = append(errs, c.reader.Close())
		c.reader = nil
	}
	if c.file != nil {
		errs = append(errs, c.file.Close())
		c.file = nil
	}
	return errors.Join(errs...)
}
