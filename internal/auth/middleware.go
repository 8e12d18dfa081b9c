package auth

import (
	"net/http"
	"strings"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/transport"
)

// Middleware resolves the bearer token into a session for every request
// behind it.
func Middleware(svc *Service, base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				base.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			session, err := svc.ResolveSession(r.Context(), strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				base.HandleServiceError(w, err)
				return
			}

			ctx := ContextWithSession(r.Context(), session)
			ctx = internal.ContextWithUserID(ctx, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on a coarse role permission. Super admins
// pass unconditionally.
func RequirePermission(base *transport.BaseHandler, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				base.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !session.IsSuperAdmin() && !session.Perms.Has(permission) {
				base.WriteError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
