// Package httputil holds the JSON envelope helpers shared by every handler and
// by the collaborator clients that read the same envelope back.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "composite/pkg/domain-errors"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

// ErrorInfo is the structured error payload returned for every terminal error.
// Collaborators answer with the same shape.
type ErrorInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
}

// WriteJSON writes v with the given status. Encoding errors are ignored because
// the header is already sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP status and error payload.
// Internal errors never leak their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	msg := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		msg = "internal error"
	}
	path := ""
	if r != nil {
		path = r.URL.Path
	}
	WriteJSON(w, status, ErrorInfo{
		Timestamp: time.Now().UTC(),
		Path:      path,
		Status:    status,
		Message:   msg,
	})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnavailable, dErrors.CodeDispatchRejected:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a bounded request body into T. Unknown fields are rejected.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return v, nil
}

// TranslateResponse maps a collaborator's error response onto the domain
// taxonomy. The message of a parseable ErrorInfo body is kept; otherwise the
// raw body text is used so diagnostics are not lost.
func TranslateResponse(status int, body []byte) error {
	msg := messageFromBody(status, body)
	switch status {
	case http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, msg)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return dErrors.New(dErrors.CodeInvalidInput, msg)
	default:
		return dErrors.Wrap(errors.New(http.StatusText(status)), dErrors.CodeUnavailable, msg)
	}
}

func messageFromBody(status int, body []byte) string {
	var info ErrorInfo
	if err := json.Unmarshal(body, &info); err == nil && info.Message != "" {
		return info.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return fmt.Sprintf("unexpected status %d", status)
}
