package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// CookieName is the session cookie set after a successful login.
const CookieName = "authenticated"

// Token derives the cookie value from the configured password.
func Token(password string) string {
	sum := sha256.Sum256([]byte("facewatch:" + password))
	return hex.EncodeToString(sum[:])
}

// protected reports whether path sits behind the password gate. The landing
// page and the live stream stay public.
func protected(path string) bool {
	return path == "/recordings" ||
		strings.HasPrefix(path, "/recordings/") ||
		strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/logs/")
}

// AuthMiddleware requires the session cookie on protected paths. An empty
// password disables the gate.
func AuthMiddleware(password string) func(http.Handler) http.Handler {
	token := Token(password)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" || !protected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(CookieName)
			if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(token)) != 1 {
				// API and AJAX callers get 401, browsers go to the login page
				if strings.HasPrefix(r.URL.Path, "/api/") ||
					r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
					r.Header.Get("Content-Type") == "application/json" {
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
