package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitByIP_LimitsPerClient(t *testing.T) {
	ipConfig, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2, IPConfig: ipConfig})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	send := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.1").Code)

	limited := send("203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	var body models.LoginResult
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, FloodMessage, body.Message)

	assert.Equal(t, http.StatusOK, send("203.0.113.2").Code, "other clients behind the same proxy are unaffected")
}
