/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates JSON body decoding with strict field checking and size limits,
returning application errors suitable for the unified response envelope.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"bizhub/internal/pkg/errs"
)

// MaxJSONBodySize limits request bodies to 1 MB. Document-intelligence payloads
// carry inline base64 content and get a higher dedicated limit.
const MaxJSONBodySize int64 = 1 << 20

// MaxDocumentBodySize is the limit for requests carrying an inline document payload (12 MB).
const MaxDocumentBodySize int64 = 12 << 20

// BindJSON binds the JSON request body to dst, rejecting unknown fields and
// trailing content.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	return bindJSONLimited(r, dst, MaxJSONBodySize)
}

// BindDocumentJSON binds a JSON body that may carry an inline encoded document.
func BindDocumentJSON(r *http.Request, dst any) *errs.CustomError {
	return bindJSONLimited(r, dst, MaxDocumentBodySize)
}

func bindJSONLimited(r *http.Request, dst any, limit int64) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
