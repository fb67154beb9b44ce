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

package formats

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// ErrFormatMismatch is a sentinel indicating a staged file failed the
// structural check for its declared format. Use errors.Is to detect it.
var ErrFormatMismatch = errors.New("declared format does not match file content")

// parquetMagic brackets every parquet file: 4 bytes at the head and the
// same 4 bytes at the tail, ahead of nothing (the footer length sits just
// before the tail marker).
var parquetMagic = []byte("PAR1")

const maxSniffLine = 1024 * 1024

// Detect performs the advisory structural check for a staged file against
// its declared format. It reads only the head (and, for parquet, the tail)
// of the file; a pass here does not guarantee a clean full parse.
func Detect(path string, declared Format) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch declared {
	case Parquet:
		return detectParquet(f)
	case CSV:
		return detectCSV(f)
	case NDJSON:
		return detectNDJSON(f)
	default:
		return fmt.Errorf("%w: no check for format %q", ErrFormatMismatch, declared)
	}
}

func detectParquet(f *os.File) error {
	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("%w: file too short for parquet", ErrFormatMismatch)
	}
	if !bytes.Equal(head, parquetMagic) {
		return fmt.Errorf("%w: missing parquet header magic", ErrFormatMismatch)
	}

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat staged file: %w", err)
	}
	if fi.Size() < 12 {
		return fmt.Errorf("%w: file too short for parquet", ErrFormatMismatch)
	}
	tail := make([]byte, 4)
	if _, err := f.ReadAt(tail, fi.Size()-4); err != nil {
		return fmt.Errorf("failed to read parquet footer: %w", err)
	}
	if !bytes.Equal(tail, parquetMagic) {
		return fmt.Errorf("%w: missing parquet footer magic", ErrFormatMismatch)
	}
	return nil
}

func detectCSV(f *os.File) error {
	line, err := firstLine(f)
	if err != nil {
		return err
	}
	if len(line) == 0 {
		return fmt.Errorf("%w: empty file where CSV expected", ErrFormatMismatch)
	}
	if bytes.HasPrefix(line, parquetMagic) {
		return fmt.Errorf("%w: parquet content where CSV expected", ErrFormatMismatch)
	}
	if bytes.IndexByte(line, 0) >= 0 {
		return fmt.Errorf("%w: binary content where CSV expected", ErrFormatMismatch)
	}
	if !utf8.Valid(line) {
		return fmt.Errorf("%w: header line is not valid UTF-8", ErrFormatMismatch)
	}
	// A lone JSON object on the first line is NDJSON, not a CSV header.
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return fmt.Errorf("%w: JSON content where CSV expected", ErrFormatMismatch)
	}
	return nil
}

func detectNDJSON(f *os.File) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSniffLine)
	for scanner.Scan() {
		trimmed := bytes.TrimSpace(scanner.Bytes())
		if len(trimmed) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("%w: first line is not a JSON object", ErrFormatMismatch)
		}
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to sniff staged file: %w", err)
	}
	return fmt.Errorf("%w: empty file where NDJSON expected", ErrFormatMismatch)
}

func firstLine(f *os.File) ([]byte, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSniffLine)
	if scanner.Scan() {
		return scanner.Bytes(), nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to sniff staged file: %w", err)
	}
	return nil, nil
}
