package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-key-for-tests"

func newTestAuthenticator(t *testing.T) *JWTAuthenticator {
	t.Helper()
	a, err := NewJWTAuthenticator(testSecret, "authenticated")
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() failed: %v", err)
	}
	return a
}

// TestAuthenticate_Sources tests the bearer header and the session cookie
func TestAuthenticate_Sources(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.Issue(&Session{
		UserID:   "user-1",
		Email:    "ada@example.com",
		Metadata: map[string]any{"github_token": "gho_meta"},
	}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer "+token)

	cookie := httptest.NewRequest(http.MethodGet, "/", nil)
	cookie.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	for name, r := range map[string]*http.Request{"bearer": bearer, "cookie": cookie} {
		t.Run(name, func(t *testing.T) {
			sess, err := a.Authenticate(r)
			if err != nil {
				t.Fatalf("Authenticate() failed: %v", err)
			}
			if sess.UserID != "user-1" || sess.Email != "ada@example.com" {
				t.Errorf("session = %+v", sess)
			}
			if got := sess.MetadataString("github_token"); got != "gho_meta" {
				t.Errorf("metadata github_token = %q", got)
			}
		})
	}
}

// TestAuthenticate_Rejects tests missing, expired and forged tokens
func TestAuthenticate_Rejects(t *testing.T) {
	a := newTestAuthenticator(t)

	expired, _ := a.Issue(&Session{UserID: "user-1"}, -time.Minute)

	forger, _ := NewJWTAuthenticator("not-the-right-secret", "authenticated")
	forged, _ := forger.Issue(&Session{UserID: "user-1"}, time.Hour)

	wrongAud, _ := (&JWTAuthenticator{secret: []byte(testSecret)}).Issue(&Session{UserID: "user-1"}, time.Hour)

	noSub, _ := a.Issue(&Session{}, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"missing":        "",
		"garbage":        "not.a.jwt",
		"expired":        expired,
		"forged":         forged,
		"wrong audience": wrongAud,
		"no subject":     noSub,
		"alg none":       unsigned,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
			_, err := a.Authenticate(r)
			if !IsUnauthorized(err) {
				t.Errorf("Authenticate() error = %v, want unauthorized", err)
			}
		})
	}
}

// TestRequireSession tests that the middleware blocks or forwards with a session
func TestRequireSession(t *testing.T) {
	a := newTestAuthenticator(t)
	token, _ := a.Issue(&Session{UserID: "user-1"}, time.Hour)

	var seen *Session
	h := RequireSession(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if seen != nil {
		t.Error("handler ran without a session")
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.UserID != "user-1" {
		t.Errorf("session in context = %+v", seen)
	}
}

// TestOptionalSession tests that anonymous requests pass through
func TestOptionalSession(t *testing.T) {
	a := newTestAuthenticator(t)

	called := false
	h := OptionalSession(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if FromContext(r.Context()) != nil {
			t.Error("unexpected session on anonymous request")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called || rec.Code != http.StatusOK {
		t.Errorf("called=%v status=%d", called, rec.Code)
	}
}
