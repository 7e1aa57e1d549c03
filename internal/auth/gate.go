package auth

import (
	"net/http"

	"github.com/odyssey-erp/users-console/internal/shared"
)

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/login"

// RequireToken redirects to the login page unless the session holds a
// bearer token. Nothing of the protected handler runs before the check.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.SessionFromContext(r.Context()).Token() == "" {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
