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

package convertapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/cardinalhq/tableconv/internal/formats"
	"github.com/cardinalhq/tableconv/internal/sourceresolver"
)

// maxFieldBytes bounds non-file multipart values (urls, session_id).
const maxFieldBytes = 8 * 1024

// httpError carries the taxonomy code and status for a request failure.
type httpError struct {
	status int
	code   APIErrorCode
	msg    string
}

func (e *httpError) Error() string {
	return e.msg
}

func newHTTPError(status int, code APIErrorCode, format string, args ...any) *httpError {
	return &httpError{status: status, code: code, msg: fmt.Sprintf(format, args...)}
}

// writeRequestError renders an error as the API JSON payload, mapping
// pipeline errors through the taxonomy when it is not already an
// httpError.
func writeRequestError(w http.ResponseWriter, err error) {
	var he *httpError
	if errors.As(err, &he) {
		writeAPIError(w, he.status, he.code, he.msg)
		return
	}
	status, code := statusAndCodeForError(err)
	writeAPIError(w, status, code, err.Error())
}

// parseConvertBody consumes a streaming multipart body: "files" parts
// stage to scratch as they arrive, "urls" parts collect for bounded
// parallel fetching after the body ends, "session_id" is logged only.
// The combined item cap and the source-extension check both apply before
// an item stages. On error every already-staged file is released.
func (s *Service) parseConvertBody(r *http.Request, source formats.Format) ([]*sourceresolver.Resolved, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, newHTTPError(http.StatusBadRequest, ErrMissingFile, "request body must be multipart/form-data: %v", err)
	}

	maxItems := s.cfg.Limits.MaxItems

	// staged holds items in arrival order; URL slots stay nil until the
	// fetch pass fills them.
	var staged []*sourceresolver.Resolved
	var urls []string
	urlSlot := make(map[int]int) // staged index -> urls index

	releaseStaged := func() {
		for _, item := range staged {
			_ = item.Release()
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			releaseStaged()
			return nil, newHTTPError(http.StatusBadRequest, ErrMissingFile, "malformed multipart body: %v", err)
		}

		switch part.FormName() {
		case "files":
			filename := part.FileName()
			if len(staged)+1 > maxItems {
				_ = part.Close()
				releaseStaged()
				return nil, newHTTPError(http.StatusBadRequest, ErrTooManyFiles,
					"request exceeds the %d item limit", maxItems)
			}
			if !source.AcceptsFilename(filename) {
				_ = part.Close()
				releaseStaged()
				return nil, newHTTPError(http.StatusBadRequest, ErrUnsupportedExtension,
					"%q does not have a %s extension", filename, source)
			}

			item, err := s.resolver.ResolveUpload(r.Context(), filename, part)
			_ = part.Close()
			if err != nil {
				releaseStaged()
				return nil, err
			}
			staged = append(staged, item)

		case "urls":
			value, err := readFieldValue(part)
			if err != nil {
				releaseStaged()
				return nil, err
			}
			if len(staged)+1 > maxItems {
				releaseStaged()
				return nil, newHTTPError(http.StatusBadRequest, ErrTooManyFiles,
					"request exceeds the %d item limit", maxItems)
			}
			if err := checkURLExtension(value, source); err != nil {
				releaseStaged()
				return nil, err
			}
			urlSlot[len(staged)] = len(urls)
			urls = append(urls, value)
			staged = append(staged, nil)

		case "session_id":
			value, err := readFieldValue(part)
			if err != nil {
				releaseStaged()
				return nil, err
			}
			slog.Info("conversion request session", slog.String("session_id", value))

		default:
			// Unknown fields are drained and ignored
			_, _ = io.Copy(io.Discard, part)
			_ = part.Close()
		}
	}

	if len(staged) == 0 {
		return nil, newHTTPError(http.StatusBadRequest, ErrMissingFile,
			"request contains no files or urls")
	}

	if len(urls) > 0 {
		items := make([]sourceresolver.Item, len(urls))
		for i, u := range urls {
			items[i] = sourceresolver.Item{URL: u}
		}
		fetched, err := s.resolver.ResolveAll(r.Context(), items, maxItems)
		if err != nil {
			releaseStaged()
			return nil, err
		}
		for idx, urlIdx := range urlSlot {
			staged[idx] = fetched[urlIdx]
		}
	}

	return staged, nil
}

func readFieldValue(part *multipart.Part) (string, error) {
	defer func() { _ = part.Close() }()
	value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", newHTTPError(http.StatusBadRequest, ErrMissingFile, "read form field %q: %v", part.FormName(), err)
	}
	return strings.TrimSpace(string(value)), nil
}

// checkURLExtension validates the URL's path extension against the
// source format before anything downloads.
func checkURLExtension(rawURL string, source formats.Format) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newHTTPError(http.StatusBadRequest, ErrInvalidURL, "invalid url %q", rawURL)
	}
	if !source.AcceptsFilename(path.Base(u.Path)) {
		return newHTTPError(http.StatusBadRequest, ErrUnsupportedExtension,
			"%q does not have a %s extension", path.Base(u.Path), source)
	}
	return nil
}
