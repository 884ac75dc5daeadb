// Package apperr defines the error taxonomy shared by TaskFlow components
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Common errors returned by TaskFlow operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, apperr.ErrNotConnected) {
//	    // ask the user to connect GitHub first
//	}
var (
	// ErrUnauthorized is returned when a request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotConnected is returned when the user has no token for the
	// requested provider.
	ErrNotConnected = errors.New("provider not connected")

	// ErrDecrypt is returned when a stored token cannot be decrypted.
	// This is a configuration problem (wrong or rotated key), not a user error.
	ErrDecrypt = errors.New("failed to decrypt stored token")

	// ErrValidation is returned when input fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the addressed record does not exist
	// or is not visible to the caller.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries per-field messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// Invalid builds a ValidationError from field/message pairs.
func Invalid(field, msg string, more ...string) *ValidationError {
	v := &ValidationError{Fields: map[string]string{field: msg}}
	for i := 0; i+1 < len(more); i += 2 {
		v.Fields[more[i]] = more[i+1]
	}
	return v
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StatusCoder is implemented by errors that know their own HTTP status,
// such as upstream API failures.
type StatusCoder interface {
	HTTPStatus() int
}

// Status maps an error to the HTTP status code a handler should respond with.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotConnected):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// IsClientError returns true if the error was caused by the request
// rather than by the server or its configuration.
func IsClientError(err error) bool {
	code := Status(err)
	return code >= 400 && code < 500
}

// IsFatal returns true if the error indicates a misconfiguration that no
// retry or user action can fix.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// A key that cannot open stored tokens will never open them
	if errors.Is(err, ErrDecrypt) {
		return true
	}

	return false
}
