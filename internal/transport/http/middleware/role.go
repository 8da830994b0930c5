package middleware

import (
	"fmt"
	"net/http"

	"github.com/gigmarket-api/internal/transport/http/respond"
)

// RequireRole allows access only to users whose stored role is one of
// allowedRoles (e.g. domain.RoleAdmin). Must run after Auth.
func RequireRole(rs *respond.Responder, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				rs.Fail(w, r, http.StatusUnauthorized, "Token was not provided!")
				return
			}
			for _, role := range allowedRoles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			rs.Fail(w, r, http.StatusForbidden,
				fmt.Sprintf("You are not authorized to access this route. Your role is %s", u.Role))
		})
	}
}
