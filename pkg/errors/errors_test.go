package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayError_Error(t *testing.T) {
	err := NewGatewayError(CodeTokenInvalid, "signature mismatch", ErrTokenInvalid)

	assert.Contains(t, err.Error(), CodeTokenInvalid)
	assert.Contains(t, err.Error(), "signature mismatch")
	assert.Contains(t, err.Error(), ErrTokenInvalid.Error())
}

func TestGatewayError_ErrorWithoutCause(t *testing.T) {
	err := NewGatewayError(CodeInternalError, "something broke", nil)

	assert.Equal(t, "INTERNAL_ERROR: something broke", err.Error())
}

func TestGatewayError_Unwrap(t *testing.T) {
	err := NewGatewayError(CodeTokenExpired, "token has expired", ErrTokenExpired)

	assert.True(t, Is(err, ErrTokenExpired))
	assert.False(t, Is(err, ErrTokenInvalid))
}

func TestGatewayError_As(t *testing.T) {
	var err error = NewGatewayError(CodeMissingIssuer, "no issuer", ErrMissingIssuer)

	var gerr *GatewayError
	require.True(t, As(err, &gerr))
	assert.Equal(t, CodeMissingIssuer, gerr.Code)
	assert.Equal(t, "no issuer", gerr.Message)
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrJWKSFetchFailed, "endpoint unreachable")

	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, ErrJWKSFetchFailed))
	assert.Contains(t, wrapped.Error(), "endpoint unreachable")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
}
