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

// Package filewriter renders batches of rows into the supported output
// formats. Writers take a fixed column schema up front; every row is
// projected onto that schema, with absent columns rendered as nulls.
package filewriter

import (
	"context"

	"github.com/cardinalhq/tableconv/internal/filereader"
)

// Writer renders row batches to an output stream. Close must be called
// to flush buffered data; it does not close the underlying stream.
type Writer interface {
	// WriteBatch renders every row in the batch.
	WriteBatch(ctx context.Context, batch *filereader.Batch) error

	// Close flushes buffered output. The writer is unusable afterwards.
	Close() error
}
