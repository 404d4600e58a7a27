// Package httputil carries the JSON response helpers shared by all HTTP
// handlers: one encoder for success payloads and one error writer that maps
// domain error codes onto statuses. Internal errors never leak their message
// to the client.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "vendry/pkg/domain-errors"
)

// WriteJSON encodes v with the JSON content type and the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a domain error as {"error": code, "error_description":
// message}. Unknown errors and internal codes map to a bare 500 so storage
// details stay out of responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": string(dErrors.CodeInternal),
		})
		return
	}

	body := map[string]string{"error": string(domainErr.Code)}
	if domainErr.Code != dErrors.CodeInternal {
		body["error_description"] = domainErr.Message
	}
	WriteJSON(w, dErrors.HTTPStatus(domainErr.Code), body)
}

// Decode parses the JSON request body into T. Failures are logged and
// written as invalid-input errors; the caller just returns when ok is false.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "request body decode failed", "error", err.Error())
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		var zero T
		return zero, false
	}
	return req, true
}
