package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Machine codes for operational errors. Stable across releases; clients
// switch on these rather than on messages.
const (
	CodeCityNotFound      = "CITY_NOT_FOUND"
	CodeInvalidAPIKey     = "INVALID_API_KEY"
	CodeUpstreamRateLimit = "UPSTREAM_RATE_LIMIT"
	CodeUpstreamTimeout   = "UPSTREAM_TIMEOUT"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Error is an operational error: an expected failure mode carrying an HTTP
// status and a machine code. Its message is safe to show to a caller.
type Error struct {
	Code       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CityNotFound maps a provider 404 for the given city.
func CityNotFound(city string) *Error {
	return &Error{
		Code:       CodeCityNotFound,
		StatusCode: 404,
		Message:    fmt.Sprintf("City %q not found. Please check the spelling and try again.", city),
	}
}

// InvalidAPIKey maps a provider 401. Misconfiguration on our side, so 500.
func InvalidAPIKey() *Error {
	return &Error{
		Code:       CodeInvalidAPIKey,
		StatusCode: 500,
		Message:    "Invalid API key. Please configure a valid OpenWeatherMap API key.",
	}
}

// UpstreamRateLimit maps a provider 429.
func UpstreamRateLimit() *Error {
	return &Error{
		Code:       CodeUpstreamRateLimit,
		StatusCode: 503,
		Message:    "OpenWeatherMap API rate limit exceeded. Please try again later.",
	}
}

// UpstreamTimeout maps a request that exceeded its deadline. context names
// the operation, e.g. "current weather" or "forecast".
func UpstreamTimeout(context string) *Error {
	return &Error{
		Code:       CodeUpstreamTimeout,
		StatusCode: 504,
		Message:    fmt.Sprintf("Request to weather service timed out while fetching %s.", context),
	}
}

// Upstream maps any other provider-side failure.
func Upstream(message, context string) *Error {
	if message == "" {
		message = fmt.Sprintf("Failed to fetch %s from weather service.", context)
	}
	return &Error{
		Code:       CodeUpstreamError,
		StatusCode: 502,
		Message:    message,
	}
}

// Internal wraps a non-network unexpected failure without leaking detail.
func Internal(context string) *Error {
	return &Error{
		Code:       CodeInternalError,
		StatusCode: 500,
		Message:    fmt.Sprintf("An unexpected error occurred while fetching %s.", context),
	}
}

// Validation reports a rejected request input.
func Validation(message string) *Error {
	return &Error{
		Code:       CodeValidationError,
		StatusCode: 400,
		Message:    message,
	}
}

// From returns the *Error inside err, or a generic INTERNAL_ERROR when err
// is not operational. Unexpected errors are never exposed with detail.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{
		Code:       CodeInternalError,
		StatusCode: 500,
		Message:    "An internal server error occurred.",
	}
}

// Response is the wire shape of the error contract.
type Response struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

// Response renders the error contract with an RFC3339 UTC timestamp.
func (e *Error) Response() Response {
	return Response{
		Error:      e.Message,
		Code:       e.Code,
		StatusCode: e.StatusCode,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}
