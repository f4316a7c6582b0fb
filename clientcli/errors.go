package clientcli

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrInvalidEndpoint = errors.New("endpoint must be an http or https URL")
)

// Errors for input validation.
var (
	ErrNoKeys    = errors.New("no keys provided")
	ErrEmptyKey  = errors.New("key is required")
	ErrEmptyPath = errors.New("path is required")
)

// APIError is an error envelope returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: %d %s - %s", e.StatusCode, e.Code, e.Message)
}

// Is reports whether target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	ErrNotFound             = &APIError{StatusCode: http.StatusNotFound}
	ErrUnsupportedMediaType = &APIError{StatusCode: http.StatusUnsupportedMediaType}
	ErrPayloadTooLarge      = &APIError{StatusCode: http.StatusRequestEntityTooLarge}
	// ErrTimeout is returned when the server's storage backend timed out (504).
	ErrTimeout = &APIError{StatusCode: http.StatusGatewayTimeout}
)
