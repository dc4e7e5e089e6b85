package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthCookie is the cookie set by a successful login.
const AuthCookie = "authenticated"

// CookieValue derives the cookie contents from the configured password so a
// password change invalidates existing sessions.
func CookieValue(password string) string {
	sum := sha256.Sum256([]byte("deepfakedetector:" + password))
	return hex.EncodeToString(sum[:])
}

// Auth requires the auth cookie on every request except the login page,
// static assets and the health check. An empty password disables the check.
func Auth(password string) func(http.Handler) http.Handler {
	want := CookieValue(password)

	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(AuthCookie)
			if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(want)) != 1 {
				// API and websocket clients get 401, browsers go to the login page
				if strings.HasPrefix(r.URL.Path, "/api/") ||
					r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		path == "/healthz" ||
		strings.HasPrefix(path, "/static/")
}
