// Package httputil provides helpers for writing structured HTTP responses.
package httputil

import (
	"encoding/json"
	"net/http"
	"time"

	gwerrors "github.com/your-org/edge-gateway/pkg/errors"
)

// ErrorBody is the JSON error envelope returned to clients.
type ErrorBody struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorResponseWriter writes structured JSON error responses.
type ErrorResponseWriter struct {
	includeRequestID bool
	includeTimestamp bool
}

// NewErrorResponseWriter creates a new error response writer.
func NewErrorResponseWriter(includeRequestID, includeTimestamp bool) *ErrorResponseWriter {
	return &ErrorResponseWriter{
		includeRequestID: includeRequestID,
		includeTimestamp: includeTimestamp,
	}
}

// DefaultErrorResponseWriter returns a writer with request IDs enabled.
func DefaultErrorResponseWriter() *ErrorResponseWriter {
	return NewErrorResponseWriter(true, false)
}

// WriteError writes an error response with the given status, code and message.
func (w *ErrorResponseWriter) WriteError(rw http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := ErrorBody{
		Status:  status,
		Code:    code,
		Message: message,
		Path:    r.URL.Path,
	}
	if w.includeRequestID {
		body.RequestID = requestID(r)
	}
	if w.includeTimestamp {
		body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(errorEnvelope{Error: body})
}

// WriteGatewayError maps a gateway error to an HTTP response.
// Token and resolution failures map to 401, routing misses to 404,
// upstream failures to 502, everything else to 500.
func (w *ErrorResponseWriter) WriteGatewayError(rw http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := gwerrors.CodeInternalError
	message := "internal error"

	var gerr *gwerrors.GatewayError
	if gwerrors.As(err, &gerr) {
		code = gerr.Code
		message = gerr.Message
	}

	switch {
	case gwerrors.Is(err, gwerrors.ErrTokenMissing),
		gwerrors.Is(err, gwerrors.ErrTokenMalformed),
		gwerrors.Is(err, gwerrors.ErrMissingIssuer),
		gwerrors.Is(err, gwerrors.ErrTokenInvalid),
		gwerrors.Is(err, gwerrors.ErrTokenExpired),
		gwerrors.Is(err, gwerrors.ErrResolutionFailed):
		status = http.StatusUnauthorized
		if code == gwerrors.CodeInternalError {
			code = gwerrors.CodeUnauthorized
		}
		if message == "internal error" {
			message = "authentication failed"
		}
	case gwerrors.Is(err, gwerrors.ErrRouteNotFound):
		status = http.StatusNotFound
		code = gwerrors.CodeRouteNotFound
		message = "no route for request path"
	case gwerrors.Is(err, gwerrors.ErrServiceUnavailable),
		gwerrors.Is(err, gwerrors.ErrTimeout):
		status = http.StatusBadGateway
		code = gwerrors.CodeBadGateway
		message = "upstream unavailable"
	}

	w.WriteError(rw, r, status, code, message)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

// requestID extracts the request or correlation ID from headers.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Correlation-ID"); id != "" {
		return id
	}
	return ""
}
