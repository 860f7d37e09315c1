// Package httputil centralizes JSON encoding and domain error translation for
// the operational HTTP endpoints.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "immuna/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures are ignored;
// the status line has already been written.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error to a JSON error envelope. Internal
// errors omit the description so infrastructure details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	var e *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &e) {
		body["error_description"] = e.Message
	}
	WriteJSON(w, status, body)
}
