package errors

import (
	"errors"
	"fmt"
)

// Standard error types for the gateway.
var (
	// Token errors
	ErrTokenMissing   = errors.New("token is missing")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrMissingIssuer  = errors.New("token has no issuer claim")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenExpired   = errors.New("token has expired")

	// Provider resolution errors
	ErrResolutionFailed = errors.New("provider resolution failed")
	ErrKeyNotFound      = errors.New("signing key not found")
	ErrJWKSFetchFailed  = errors.New("failed to fetch JWKS")
	ErrJWKSParseError   = errors.New("failed to parse JWKS")

	// Principal extraction errors
	ErrInvalidArgument = errors.New("invalid argument")

	// Event processing errors
	ErrMissingField     = errors.New("required field is missing")
	ErrMalformedPayload = errors.New("event payload is malformed")

	// Routing errors
	ErrRouteNotFound = errors.New("no route for collection")

	// Service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// GatewayError represents a structured gateway error.
type GatewayError struct {
	// Code is the stable error code surfaced to clients
	Code string `json:"code"`

	// Message is the error message
	Message string `json:"message"`

	// Cause is the underlying error
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// NewGatewayError creates a new GatewayError.
func NewGatewayError(code, message string, cause error) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	CodeTokenMalformed   = "MALFORMED_TOKEN"
	CodeMissingIssuer    = "MISSING_ISSUER"
	CodeResolutionFailed = "RESOLUTION_FAILED"
	CodeTokenInvalid     = "INVALID_TOKEN"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeMissingField     = "MISSING_FIELD"
	CodeRouteNotFound    = "ROUTE_NOT_FOUND"
	CodeBadGateway       = "BAD_GATEWAY"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
