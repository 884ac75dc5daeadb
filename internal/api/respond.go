package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/github"
)

const maxBodyBytes = 1 << 20

// errNotConfigured marks integrations switched off in configuration.
var errNotConfigured = errors.New("integration not configured")

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	ResetAt string            `json:"resetAt,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a client-safe message. Server-side
// failures are logged with the request id and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if rl, ok := github.AsRateLimit(err); ok {
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:   "GitHub API rate limit exceeded",
			ResetAt: github.FormatResetAt(rl.ResetAt),
		})
		return
	}

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation failed", Details: ve.Fields})
		return
	}

	var ue *github.UpstreamError
	if errors.As(err, &ue) {
		s.logger.Printf("GitHub error on %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, ue.HTTPStatus(), errorBody{Error: fmt.Sprintf("GitHub API error (status %d)", ue.StatusCode)})
		return
	}

	switch {
	case errors.Is(err, errNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
	case errors.Is(err, apperr.ErrNotConnected):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "GitHub is not connected. Connect your GitHub account first."})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation failed"})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	default:
		if apperr.IsFatal(err) {
			s.logger.Printf("ERROR: configuration problem on %s %s (request %s): %v", r.Method, r.URL.Path, requestID(r), err)
		} else {
			s.logger.Printf("Error on %s %s (request %s): %v", r.Method, r.URL.Path, requestID(r), err)
		}
		writeJSON(w, apperr.Status(err), errorBody{Error: "Internal server error"})
	}
}

// decodeJSON reads a JSON body into v. Malformed bodies are validation errors.
func decodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("body", "is required")
		}
		return apperr.Invalid("body", "must be valid JSON")
	}
	return nil
}
