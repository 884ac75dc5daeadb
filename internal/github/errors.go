package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ResetAtFormat is the millisecond ISO-8601 form clients receive in resetAt.
const ResetAtFormat = "2006-01-02T15:04:05.000Z"

// RateLimitError is returned when GitHub refuses a call because the caller's
// rate limit is exhausted. ResetAt is when the limit resets.
type RateLimitError struct {
	ResetAt time.Time
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limit exceeded, resets at %s", FormatResetAt(e.ResetAt))
}

// HTTPStatus maps a rate limit onto 429 for API clients.
func (e *RateLimitError) HTTPStatus() int {
	return http.StatusTooManyRequests
}

// UpstreamError is any other non-200 GitHub response.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("github returned status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus passes the upstream status through.
func (e *UpstreamError) HTTPStatus() int {
	return e.StatusCode
}

// FormatResetAt renders t in UTC with millisecond precision.
func FormatResetAt(t time.Time) string {
	return t.UTC().Format(ResetAtFormat)
}

// AsRateLimit returns the rate-limit error wrapped in err, if any.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
