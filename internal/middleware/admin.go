package middleware

import (
	"net/http"
	"slices"
)

// RoleOperator may manage freezes and limits and override transaction status.
const RoleOperator = "wallet_operator"

// RequireRole lets the request through only when the authenticated caller's
// token carries role. It must run after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ActorFromContext(r.Context()); !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(RolesFromContext(r.Context()), role) {
				http.Error(w, "missing required role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
