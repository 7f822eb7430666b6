package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/frahmantamala/access-management/internal"
)

// RequestMeta captures the caller's IP address and user agent into the
// request context so the audit trail can record them with every permission
// mutation.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := internal.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}

		ctx := internal.ContextWithRequestMeta(r.Context(), meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers the first X-Forwarded-For hop when the service sits
// behind a proxy, falling back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
