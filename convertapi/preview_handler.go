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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cardinalhq/tableconv/internal/formats"
	"github.com/cardinalhq/tableconv/internal/preview"
	"github.com/cardinalhq/tableconv/internal/sourceresolver"
)

// handlePreview serves POST /v1/preview: exactly one of a "file" upload
// or a "url" field, answered with the schema and the leading rows.
func (s *Service) handlePreview(w http.ResponseWriter, r *http.Request) {
	item, err := s.parsePreviewBody(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer func() { _ = item.Release() }()

	format, ok := formats.FromFilename(item.Filename)
	if !ok {
		writeAPIError(w, http.StatusBadRequest, ErrUnsupportedExtension,
			fmt.Sprintf("%q has no supported extension", item.Filename))
		return
	}

	if err := formats.Detect(item.Resource.Path(), format); err != nil {
		status, code := statusAndCodeForError(err)
		writeAPIError(w, status, code, fmt.Sprintf("%s: %v", item.Filename, err))
		return
	}

	result, err := preview.Extract(r.Context(), item.Resource.Path(), format, preview.Options{})
	if err != nil {
		status, code := statusAndCodeForError(err)
		if code == ErrInternal {
			status, code = http.StatusBadRequest, ErrPreviewFailed
		}
		writeAPIError(w, status, code, fmt.Sprintf("%s: %v", item.Filename, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// parsePreviewBody stages the single preview source. A request with
// both or neither of "file"/"url" is rejected.
func (s *Service) parsePreviewBody(r *http.Request) (*sourceresolver.Resolved, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, newHTTPError(http.StatusBadRequest, ErrMissingFile, "request body must be multipart/form-data: %v", err)
	}

	var staged *sourceresolver.Resolved
	var rawURL string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if staged != nil {
				_ = staged.Release()
			}
			return nil, newHTTPError(http.StatusBadRequest, ErrMissingFile, "malformed multipart body: %v", err)
		}

		switch part.FormName() {
		case "file":
			if staged != nil || rawURL != "" {
				_ = part.Close()
				if staged != nil {
					_ = staged.Release()
				}
				return nil, newHTTPError(http.StatusBadRequest, ErrAmbiguousSource,
					"preview accepts exactly one of file or url")
			}
			item, err := s.resolver.ResolveUpload(r.Context(), part.FileName(), part)
			_ = part.Close()
			if err != nil {
				return nil, err
			}
			staged = item

		case "url":
			value, err := readFieldValue(part)
			if err != nil {
				if staged != nil {
					_ = staged.Release()
				}
				return nil, err
			}
			if staged != nil || rawURL != "" {
				if staged != nil {
					_ = staged.Release()
				}
				return nil, newHTTPError(http.StatusBadRequest, ErrAmbiguousSource,
					"preview accepts exactly one of file or url")
			}
			rawURL = value

		default:
			_, _ = io.Copy(io.Discard, part)
			_ = part.Close()
		}
	}

	if staged != nil {
		return staged, nil
	}
	if rawURL != "" {
		return s.resolver.ResolveURL(r.Context(), rawURL)
	}
	return nil, newHTTPError(http.StatusBadRequest, ErrMissingFile,
		"preview requires a file upload or a url")
}
