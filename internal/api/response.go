package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"omnia/internal/catalog"
)

// Error codes carried in the envelope.
const (
	CodeBadRequest  = "bad_request"
	CodeInvalidJSON = "invalid_json"
	CodeNotFound    = "not_found"
	CodeConflict    = "conflict"
	CodeIntegrity   = "integrity"
	CodeInternal    = "internal"
)

// APIError describes a failed request.
type APIError struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// Envelope wraps every response body. Error is set only on failure.
type Envelope struct {
	Error *APIError `json:"error,omitempty"`
	Data  any       `json:"data"`
}

// mapError picks the HTTP status and envelope for a catalog error.
func mapError(err error) (int, Envelope) {
	fail := func(status int, code string) (int, Envelope) {
		return status, Envelope{Error: &APIError{Code: code, Text: err.Error()}}
	}
	switch {
	case errors.Is(err, catalog.ErrValidation):
		return fail(http.StatusBadRequest, CodeBadRequest)
	case errors.Is(err, catalog.ErrNotFound):
		return fail(http.StatusNotFound, CodeNotFound)
	case errors.Is(err, catalog.ErrConflict):
		return fail(http.StatusConflict, CodeConflict)
	case errors.Is(err, catalog.ErrIntegrity):
		return fail(http.StatusInternalServerError, CodeIntegrity)
	default:
		return http.StatusInternalServerError, Envelope{Error: &APIError{Code: CodeInternal, Text: "unexpected error"}}
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, RequestIDFromContext(r.Context()))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, r *http.Request, data any) {
	writeEnvelope(w, r, http.StatusOK, Envelope{Data: data})
}

func writeFail(w http.ResponseWriter, r *http.Request, status int, code, text string) {
	writeEnvelope(w, r, status, Envelope{Error: &APIError{Code: code, Text: text}})
}
