package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/product-catalog/internal/domain/auth"
	"github.com/xenking/product-catalog/internal/domain/product"
)

// handleError maps domain errors to HTTP responses. Unrecognized errors are
// logged and reported as 500 without details.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *product.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, errMalformedBody):
		writeError(w, http.StatusBadRequest, "malformed request body")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeError writes {"code":<status>,"message":<msg>}.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeValidationError writes the 422 envelope with per-field messages.
func writeValidationError(w http.ResponseWriter, verr *product.ValidationError) {
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusUnprocessableEntity)
	e.FieldStart("message")
	e.Str("The given data was invalid.")
	e.FieldStart("errors")
	e.ObjStart()
	for _, f := range fields {
		e.FieldStart(f)
		e.ArrStart()
		for _, msg := range verr.Fields[f] {
			e.Str(msg)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusUnprocessableEntity, &e)
}
