package auth

import (
	"net/http"
	"time"
)

const (
	SessionIDCookie    = "session_id"
	SessionTokenCookie = "session_token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetSessionIDCookie stores the opaque session identifier used for session blocking.
// It is a browser-session cookie.
func SetSessionIDCookie(w http.ResponseWriter, sessionID string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionIDCookie,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// SetSessionTokenCookie stores the signed session token issued on login
func SetSessionTokenCookie(w http.ResponseWriter, token string, expiry time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionTokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(expiry),
		MaxAge:   int(expiry.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetSessionIDCookie retrieves the session identifier from cookies
func GetSessionIDCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionIDCookie)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetSessionTokenCookie retrieves the session token from cookies
func GetSessionTokenCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionTokenCookie)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// ClearSessionTokenCookie expires the session token cookie
func ClearSessionTokenCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionTokenCookie,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
