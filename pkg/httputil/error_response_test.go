package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/your-org/edge-gateway/pkg/errors"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()

	var envelope struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestWriteError_Envelope(t *testing.T) {
	w := NewErrorResponseWriter(false, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books/1", nil)

	w.WriteError(rec, req, http.StatusUnauthorized, gwerrors.CodeUnauthorized, "authentication failed")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	body := decodeErrorBody(t, rec)
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.Equal(t, "authentication failed", body.Message)
	assert.Equal(t, "/api/books/1", body.Path)
	assert.Empty(t, body.RequestID)
}

func TestWriteError_RequestID(t *testing.T) {
	w := NewErrorResponseWriter(true, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("X-Request-ID", "req-42")

	w.WriteError(rec, req, http.StatusNotFound, gwerrors.CodeRouteNotFound, "not found")

	body := decodeErrorBody(t, rec)
	assert.Equal(t, "req-42", body.RequestID)
}

func TestWriteGatewayError_Mappings(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed token",
			err:        gwerrors.NewGatewayError(gwerrors.CodeTokenMalformed, "token is not parseable", gwerrors.ErrTokenMalformed),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "MALFORMED_TOKEN",
		},
		{
			name:       "missing issuer",
			err:        gwerrors.NewGatewayError(gwerrors.CodeMissingIssuer, "token has no issuer claim", gwerrors.ErrMissingIssuer),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "MISSING_ISSUER",
		},
		{
			name:       "expired token",
			err:        gwerrors.NewGatewayError(gwerrors.CodeTokenExpired, "token has expired", gwerrors.ErrTokenExpired),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "TOKEN_EXPIRED",
		},
		{
			name:       "resolution failed",
			err:        gwerrors.NewGatewayError(gwerrors.CodeResolutionFailed, "no provider info", gwerrors.ErrResolutionFailed),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "RESOLUTION_FAILED",
		},
		{
			name:       "bare sentinel maps to generic unauthorized",
			err:        gwerrors.ErrTokenMissing,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "route not found",
			err:        gwerrors.ErrRouteNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "ROUTE_NOT_FOUND",
		},
		{
			name:       "upstream unavailable",
			err:        gwerrors.ErrServiceUnavailable,
			wantStatus: http.StatusBadGateway,
			wantCode:   "BAD_GATEWAY",
		},
		{
			name:       "unclassified error",
			err:        gwerrors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewErrorResponseWriter(false, false)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/things", nil)

			w.WriteGatewayError(rec, req, tt.err)

			body := decodeErrorBody(t, rec)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, "/api/things", body.Path)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSON(rec, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
