package middleware

import (
	"net"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/deptfile/file-management/internal"
)

// RequestMeta captures the request attributes the audit trail records. It
// must sit after the chi RequestID middleware so the id is populated.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := internal.RequestMeta{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: chiMiddleware.GetReqID(r.Context()),
		}
		next.ServeHTTP(w, r.WithContext(internal.ContextWithRequestMeta(r.Context(), meta)))
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
