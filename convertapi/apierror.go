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
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardinalhq/tableconv/internal/convert"
	"github.com/cardinalhq/tableconv/internal/filereader"
	"github.com/cardinalhq/tableconv/internal/formats"
	"github.com/cardinalhq/tableconv/internal/sourceresolver"
)

// APIErrorCode is the stable machine-readable error vocabulary.
type APIErrorCode string

const (
	ErrTooManyFiles         APIErrorCode = "too_many_files"
	ErrFileTooLarge         APIErrorCode = "file_too_large"
	ErrUnsupportedExtension APIErrorCode = "unsupported_extension"
	ErrInvalidURL           APIErrorCode = "invalid_url"
	ErrMissingFile          APIErrorCode = "missing_file"
	ErrAmbiguousSource      APIErrorCode = "ambiguous_source"
	ErrFetchFailed          APIErrorCode = "fetch_failed"
	ErrURLRejected          APIErrorCode = "url_rejected"
	ErrFormatMismatch       APIErrorCode = "format_mismatch"
	ErrConversionFailed     APIErrorCode = "conversion_failed"
	ErrSchemaInference      APIErrorCode = "schema_inference_failed"
	ErrParseError           APIErrorCode = "parse_error"
	ErrUnsupportedType      APIErrorCode = "unsupported_type"
	ErrPreviewFailed        APIErrorCode = "preview_failed"
	ErrInternal             APIErrorCode = "internal_error"
)

// APIError is the JSON error payload.
type APIError struct {
	Code    APIErrorCode `json:"code"`
	Message string       `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, code APIErrorCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: msg,
	})
}

// Non-standard but used by many proxies for client disconnects.
const statusClientClosedRequest = 499

// statusAndCodeForError maps a pipeline error to the HTTP status and
// taxonomy code. Unrecognized errors fall back to internal_error.
func statusAndCodeForError(err error) (int, APIErrorCode) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ErrConversionFailed
	case errors.Is(err, sourceresolver.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge, ErrFileTooLarge
	case errors.Is(err, sourceresolver.ErrInvalidURL):
		return http.StatusBadRequest, ErrInvalidURL
	case errors.Is(err, sourceresolver.ErrSourceRejected):
		return http.StatusBadGateway, ErrURLRejected
	case errors.Is(err, sourceresolver.ErrSourceUnreachable):
		return http.StatusBadGateway, ErrFetchFailed
	case errors.Is(err, formats.ErrFormatMismatch):
		return http.StatusBadRequest, ErrFormatMismatch
	case errors.Is(err, convert.ErrUnsupportedKind):
		return http.StatusBadRequest, ErrUnsupportedType
	case errors.Is(err, convert.ErrSchemaInference):
		return http.StatusBadRequest, ErrSchemaInference
	case errors.Is(err, filereader.ErrParse):
		return http.StatusBadRequest, ErrParseError
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}

// conversionStatusAndCode is statusAndCodeForError with conversion_failed
// as the fallback for errors the taxonomy does not name.
func conversionStatusAndCode(err error) (int, APIErrorCode) {
	status, code := statusAndCodeForError(err)
	if code == ErrInternal {
		return http.StatusBadRequest, ErrConversionFailed
	}
	return status, code
}
