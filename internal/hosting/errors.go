package hosting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Diagnostic codes returned by Kind.
const (
	KindAuthFailure     = "auth_failure"
	KindNonJSON         = "non_json_response"
	KindNetworkFailure  = "network_failure"
	KindTimeout         = "timeout"
	KindNotFound        = "not_found"
	KindRateLimited     = "rate_limited"
	KindHTTPError       = "http_error"
	KindDecodeError     = "decode_error"
	KindCanceled        = "canceled"
	KindInternalError   = "internal_error"
	KindInvalidArgument = "invalid_argument"
)

// AuthError is returned when every configured auth scheme was rejected with 401.
type AuthError struct {
	Schemes []string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (tried %s)", strings.Join(e.Schemes, ", "))
}

// NonJSONError is returned when a successful response is not JSON, usually an
// HTML login or error page served by a proxy in front of the API.
type NonJSONError struct {
	StatusCode  int
	ContentType string
	Snippet     string
}

func (e *NonJSONError) Error() string {
	ct := e.ContentType
	if ct == "" {
		ct = "none"
	}
	return fmt.Sprintf("expected JSON response, got content-type %s (status %d)", ct, e.StatusCode)
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// NotFoundError is returned for 404 responses, e.g. a target branch that does
// not exist on the host.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message == "" {
		return "not found"
	}
	return fmt.Sprintf("not found: %s", e.Message)
}

// RateLimitError is returned when the hosting API rate limit is exceeded.
type RateLimitError struct {
	StatusCode    int
	RetryAfterSec int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("hosting API rate limit exceeded, retry after %d seconds", e.RetryAfterSec)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// DecodeError is returned when a JSON response does not match the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return 404
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.StatusCode
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return 401
	}
	var nj *NonJSONError
	if errors.As(err, &nj) {
		return nj.StatusCode
	}
	return 0
}

// Kind maps err to a stable diagnostic code. It returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		ae *AuthError
		nj *NonJSONError
		nf *NotFoundError
		rl *RateLimitError
		se *StatusError
		de *DecodeError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &ae):
		return KindAuthFailure
	case errors.As(err, &nj):
		return KindNonJSON
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &rl):
		return KindRateLimited
	case errors.As(err, &se):
		return KindHTTPError
	case errors.As(err, &de):
		return KindDecodeError
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &ne):
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetworkFailure
	case errors.Is(err, ErrMissingHost), errors.Is(err, ErrMissingProject), errors.Is(err, ErrMissingToken):
		return KindInvalidArgument
	}
	return KindInternalError
}
