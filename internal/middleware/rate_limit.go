package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/httprate"
)

// FloodMessage is returned when the per-IP request flood guard trips
const FloodMessage = "Too many requests from this address. Please slow down."

// RateLimitConfig holds the per-IP flood guard configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// RateLimitByIP limits raw request volume per client IP. It sits in front of
// the per-username abuse tracker and answers in the login response shape.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteJSON(w, http.StatusTooManyRequests, models.LoginResult{
				Success: false,
				Message: FloodMessage,
			})
		}),
	)
}
