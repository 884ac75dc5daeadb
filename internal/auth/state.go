package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/secret"
)

// stateTTL bounds how long a user may take on the provider's consent screen.
const stateTTL = 10 * 60

// IssueState creates an OAuth state value and stores it in a short-lived,
// HTTP-only cookie scoped to path.
func IssueState(w http.ResponseWriter, cookieName, path string, secure bool) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    state,
		Path:     path,
		MaxAge:   stateTTL,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// CheckState compares the state query parameter with the cookie set by
// IssueState and clears the cookie.
func CheckState(w http.ResponseWriter, r *http.Request, cookieName, path string) error {
	cookie, err := r.Cookie(cookieName)
	http.SetCookie(w, &http.Cookie{Name: cookieName, Path: path, MaxAge: -1})

	if err != nil || cookie.Value == "" {
		return apperr.Invalid("state", "missing oauth state cookie")
	}
	if got := r.URL.Query().Get("state"); got == "" || !secret.Equal(got, cookie.Value) {
		return apperr.Invalid("state", "does not match")
	}
	return nil
}
