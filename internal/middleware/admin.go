package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

const (
	AdminKeyHeader = "X-Admin-Key"
	AdminKeyQuery  = "admin_key"
)

// AdminConfig configures RequireAdminKey
type AdminConfig struct {
	Key        string
	Production bool
	IPConfig   *pkghttp.IPConfig
}

// RequireAdminKey guards operator routes. The key comes from the
// X-Admin-Key header or, for WebSocket clients that cannot set headers, the
// admin_key query parameter. With no key configured the routes are open
// outside production and closed in production.
func RequireAdminKey(config AdminConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Key == "" {
				if config.Production {
					pkghttp.WriteForbidden(w, "Admin access is disabled")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(AdminKeyHeader)
			if presented == "" {
				presented = r.URL.Query().Get(AdminKeyQuery)
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(config.Key)) != 1 {
				logger.Warn("admin key rejected",
					slog.String("path", r.URL.Path),
					slog.String("client_ip", pkghttp.ExtractClientIP(r, config.IPConfig)),
					slog.Bool("key_present", presented != ""))
				pkghttp.WriteUnauthorized(w, "Invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
