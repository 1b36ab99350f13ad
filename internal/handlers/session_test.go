package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
)

func TestSessionHandler_Current(t *testing.T) {
	tm := auth.NewTokenManager("session-handler-secret-32-characters")
	token, err := tm.GenerateSessionToken(&models.User{ID: "u-1", Username: "alice"}, time.Hour, true)
	require.NoError(t, err)

	h := NewSessionHandler(auth.CookieConfig{}, discardLogger())
	req := NewTestRequest(t, http.MethodGet, "/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionTokenCookie, Value: token})
	w := httptest.NewRecorder()
	auth.RequireSessionToken(tm)(http.HandlerFunc(h.Current)).ServeHTTP(w, req)

	var resp SessionResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "alice", resp.Username)
	assert.True(t, resp.RememberMe)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)
}

func TestSessionHandler_CurrentWithoutClaims(t *testing.T) {
	h := NewSessionHandler(auth.CookieConfig{}, discardLogger())
	w := httptest.NewRecorder()
	h.Current(w, NewTestRequest(t, http.MethodGet, "/session", nil))

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestSessionHandler_Logout(t *testing.T) {
	h := NewSessionHandler(auth.CookieConfig{}, discardLogger())
	w := httptest.NewRecorder()
	h.Logout(w, NewTestRequest(t, http.MethodPost, "/logout", nil))

	var resp LogoutResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionTokenCookie, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
