package app

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/retail-reco/core/internal/config"
)

// DebugGuard protects the /debug endpoint with HTTP Basic Auth, comparing the
// supplied password against a bcrypt hash of cfg.AdminPassword computed once
// at startup. A no-op (always 404s) when admin credentials are not
// configured, so /debug is simply absent rather than open in that mode.
func DebugGuard(cfg config.Config) func(http.Handler) http.Handler {
	if !cfg.AdminEnabled() {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.NotFound(w, nil)
			})
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "debug endpoint misconfigured", http.StatusInternalServerError)
			})
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			validUser := ok && subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUsername)) == 1
			validPass := ok && bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
			if !validUser || !validPass {
				w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
