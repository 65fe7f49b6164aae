package auth

import (
	"net/http"

	"github.com/mind-engage/mindengage-quizdocs/internal/rbac"
)

// AttachRole gives every request a fixed subject and role. Used instead of
// JWTMiddleware when auth is disabled, so permission checks still see a role.
func AttachRole(sub, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := rbac.WithRole(rbac.WithSubject(r.Context(), sub), role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
