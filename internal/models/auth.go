package models

import (
	"github.com/golang-jwt/jwt/v5"
)

const TokenTypeSession = "session"

type TokenClaims struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	RememberMe bool   `json:"remember_me,omitempty"`
	jwt.RegisteredClaims
}

// LoginInput is everything the orchestrator needs from one login request.
type LoginInput struct {
	Username        string
	Password        string
	Captcha         string
	ExpectedCaptcha string
	OTP             string
	RememberMe      bool
	SessionID       string
	IPAddress       string
}

// LoginResult is the decision returned to the client.
type LoginResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RequireCaptcha bool   `json:"requireCaptcha,omitempty"`
	Require2FA     bool   `json:"require2FA,omitempty"`
	Token          string `json:"token,omitempty"`
}
