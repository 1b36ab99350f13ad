package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/loginguard/internal/models"
)

const tokenIssuer = "loginguard"

// TokenManager issues and validates session tokens handed out on successful login
type TokenManager struct {
	secret  []byte
	nowFunc func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret:  []byte(secret),
		nowFunc: time.Now,
	}
}

// SessionExpiry picks the token lifetime from the session settings.
func SessionExpiry(session models.SessionSettings, rememberMe bool) time.Duration {
	if rememberMe {
		return time.Duration(session.RememberMeDays) * 24 * time.Hour
	}
	return time.Duration(session.TimeoutMinutes) * time.Minute
}

// GenerateSessionToken creates a signed session token with a unique JTI
func (tm *TokenManager) GenerateSessionToken(user *models.User, expiry time.Duration, rememberMe bool) (string, error) {
	now := tm.nowFunc()

	claims := &models.TokenClaims{
		Type:       models.TokenTypeSession,
		UserID:     user.ID,
		Username:   user.Username,
		RememberMe: rememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(tm.nowFunc))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeSession {
		return nil, fmt.Errorf("invalid token: unexpected type %q", claims.Type)
	}

	return claims, nil
}
