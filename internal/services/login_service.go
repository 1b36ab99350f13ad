package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/detection"
	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
)

// Client-facing login messages
const (
	MsgFieldsRequired  = "Both fields are required."
	MsgFieldsTooLong   = "Username or password is too long."
	MsgInjection       = "SQL Injection detected!"
	MsgBadCaptcha      = "Invalid CAPTCHA response"
	MsgSessionBlocked  = "Your session has been blocked due to too many failed attempts."
	MsgRateLimited     = "Too many login attempts. Please try again later."
	MsgBadCredentials  = "Invalid credentials."
	MsgEnterCode       = "Please enter the verification code"
	MsgBadCode         = "Invalid verification code"
	MsgLoginSuccessful = "Login successful!"
	MsgServerError     = "Server error"
)

// Field limits, checked after injection screening so oversized payloads are
// still classified.
const (
	MaxUsernameLength = 256
	MaxPasswordLength = 1024
)

// CredentialStore looks up stored credentials by username
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// EventRecorder appends a security event to the event log
type EventRecorder interface {
	Append(ctx context.Context, event models.SecurityEvent) error
}

// SettingsProvider hands out a consistent copy of the security settings
type SettingsProvider interface {
	Snapshot() models.SecuritySettings
}

// RequestMeta identifies the client behind a request for event records
type RequestMeta struct {
	SessionID string
	IPAddress string
}

func newEvent(category, message, username string, meta RequestMeta) models.SecurityEvent {
	e := models.SecurityEvent{Category: category, Message: message}
	if username != "" {
		e.Username = &username
	}
	if meta.SessionID != "" {
		e.SessionID = &meta.SessionID
	}
	if meta.IPAddress != "" {
		e.IPAddress = &meta.IPAddress
	}
	return e
}

// LoginService runs the login decision pipeline: injection screening,
// CAPTCHA gate, rate-limit gate, credential check and second factor.
type LoginService struct {
	users      CredentialStore
	tracker    *AbuseTracker
	challenges *ChallengeService
	settings   SettingsProvider
	recorder   EventRecorder
	tokens     *auth.TokenManager
	timing     *auth.TimingDelay
	logger     *slog.Logger
	dummyHash  string
}

// NewLoginService creates a new LoginService
func NewLoginService(
	users CredentialStore,
	tracker *AbuseTracker,
	challenges *ChallengeService,
	settings SettingsProvider,
	recorder EventRecorder,
	tokens *auth.TokenManager,
	timing *auth.TimingDelay,
	logger *slog.Logger,
) *LoginService {
	// Verified against when the username is unknown so both failure paths
	// cost one key derivation.
	dummyHash, err := pkgauth.HashPassword("loginguard-unknown-user")
	if err != nil {
		logger.Error("failed to prepare dummy hash", slog.Any("error", err))
	}

	return &LoginService{
		users:      users,
		tracker:    tracker,
		challenges: challenges,
		settings:   settings,
		recorder:   recorder,
		tokens:     tokens,
		timing:     timing,
		logger:     logger,
		dummyHash:  dummyHash,
	}
}

func rejected(message string) *models.LoginResult {
	return &models.LoginResult{Success: false, Message: message}
}

// Login evaluates one login request. Every outcome other than success or a
// pending second factor returns a sentinel error alongside the result body;
// callers map the error to a status code.
func (s *LoginService) Login(ctx context.Context, in models.LoginInput) (result *models.LoginResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = s.serverError(ctx, "panic during login evaluation", fmt.Errorf("%v", r), "",
				RequestMeta{SessionID: in.SessionID, IPAddress: in.IPAddress})
		}
	}()

	meta := RequestMeta{SessionID: in.SessionID, IPAddress: in.IPAddress}
	username := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)

	if username == "" || password == "" {
		return rejected(MsgFieldsRequired), models.ErrValidation
	}

	if fields, signature := screenFields(username, password); len(fields) > 0 {
		event := newEvent(models.EventSQLiAttempt,
			fmt.Sprintf("SQL injection detected in %s", strings.Join(fields, " and ")), "", meta)
		event.Metadata = models.EventMetadata{"fields": fields, "signature": signature}
		return s.finish(ctx, rejected(MsgInjection), models.ErrInjectionDetected, event)
	}

	if len(username) > MaxUsernameLength || len(password) > MaxPasswordLength {
		return rejected(MsgFieldsTooLong), models.ErrValidation
	}

	settings := s.settings.Snapshot()
	window := settings.RateLimiting.Window()

	// flag sets requireCaptcha on every rejection from here on
	flag := func(res *models.LoginResult) *models.LoginResult {
		res.RequireCaptcha = s.challenges.ShouldRequireCaptcha(username, settings)
		return res
	}

	if settings.Captcha.Enabled && in.Captcha != "" {
		if !s.challenges.VerifyCaptcha(in.SessionID, in.Captcha, in.ExpectedCaptcha) {
			res := rejected(MsgBadCaptcha)
			res.RequireCaptcha = true
			return s.finish(ctx, res, models.ErrBadCaptcha,
				newEvent(models.EventFailedCaptcha, fmt.Sprintf("Invalid CAPTCHA for user '%s'", username), username, meta))
		}
	}

	if settings.RateLimiting.Enabled {
		state, gateErr := s.tracker.Gate(in.SessionID, username, settings.RateLimiting)
		switch {
		case errors.Is(gateErr, models.ErrSessionBlocked):
			return s.finish(ctx, flag(rejected(MsgSessionBlocked)), models.ErrSessionBlocked,
				newEvent(models.EventBlockedSession, "Blocked session attempted login", username, meta))
		case errors.Is(gateErr, models.ErrRateLimitExceeded):
			event := newEvent(models.EventRateLimited, fmt.Sprintf("Rate limit exceeded for user '%s'", username), username, meta)
			event.Metadata = models.EventMetadata{"failed_attempts": state.Count}
			return s.finish(ctx, flag(rejected(MsgRateLimited)), models.ErrRateLimitExceeded, event)
		}
	}

	start := time.Now()
	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidCredentials) {
			return s.serverError(ctx, "credential lookup failed", err, username, meta)
		}

		state := s.tracker.RecordAttempt(username, models.AttemptFailure, window)
		s.timing.WaitFrom(ctx, start)

		reason := "Incorrect password attempt for user '%s'"
		if user == nil {
			reason = "Unknown user '%s' attempted to log in"
		}
		event := newEvent(models.EventFailedLogin, fmt.Sprintf(reason, username), username, meta)
		event.Metadata = models.EventMetadata{"failed_attempts": state.Count}
		return s.finish(ctx, flag(rejected(MsgBadCredentials)), models.ErrInvalidCredentials, event)
	}

	if settings.TwoFactor.Enabled {
		if strings.TrimSpace(in.OTP) == "" {
			if err := s.challenges.IssueOTP(ctx, user, settings.TwoFactor.Method); err != nil {
				return s.serverError(ctx, "failed to issue verification code", err, username, meta)
			}
			res := flag(rejected(MsgEnterCode))
			res.Require2FA = true
			event := newEvent(models.EventTwoFactor, fmt.Sprintf("Verification code sent to user '%s'", username), username, meta)
			event.Metadata = models.EventMetadata{"method": settings.TwoFactor.Method}
			return s.finish(ctx, res, nil, event)
		}

		if !s.challenges.VerifyOTP(username, in.OTP) {
			res := flag(rejected(MsgBadCode))
			res.Require2FA = true
			return s.finish(ctx, res, models.ErrInvalidOTP,
				newEvent(models.EventFailedTwoFactor, fmt.Sprintf("Invalid OTP for user '%s'", username), username, meta))
		}
	}

	s.tracker.RecordAttempt(username, models.AttemptSuccess, window)

	expiry := auth.SessionExpiry(settings.Session, in.RememberMe)
	token, err := s.tokens.GenerateSessionToken(user, expiry, in.RememberMe)
	if err != nil {
		return s.serverError(ctx, "failed to issue session token", err, username, meta)
	}

	res := &models.LoginResult{Success: true, Message: MsgLoginSuccessful, Token: token}
	return s.finish(ctx, res, nil,
		newEvent(models.EventSuccessfulLogin, fmt.Sprintf("User '%s' logged in successfully.", username), username, meta))
}

// finish records the decision. A failed write to the event log turns the
// decision into a server error.
func (s *LoginService) finish(ctx context.Context, res *models.LoginResult, decision error, event models.SecurityEvent) (*models.LoginResult, error) {
	if err := s.recorder.Append(ctx, event); err != nil {
		s.logger.Error("failed to record security event",
			slog.String("category", event.Category),
			slog.Any("error", err))
		return rejected(MsgServerError), models.ErrInternalServer
	}
	return res, decision
}

// serverError logs cause and records an ERROR event. The request already
// fails, so a failed append is only logged.
func (s *LoginService) serverError(ctx context.Context, reason string, cause error, username string, meta RequestMeta) (*models.LoginResult, error) {
	s.logger.Error(reason, slog.Any("error", cause))

	event := newEvent(models.EventServerError, "Login failed: "+reason, username, meta)
	if err := s.recorder.Append(ctx, event); err != nil {
		s.logger.Error("failed to record security event",
			slog.String("category", event.Category),
			slog.Any("error", err))
	}
	return rejected(MsgServerError), models.ErrInternalServer
}

// checkCredentials returns ErrInvalidCredentials for an unknown user or a
// wrong password. The user is returned alongside the error when it exists.
func (s *LoginService) checkCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.VerifyPassword(s.dummyHash, password)
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !pkgauth.VerifyPassword(user.PasswordHash, password) {
		return user, models.ErrInvalidCredentials
	}
	return user, nil
}

// screenFields returns which login fields match an injection signature and
// the first signature hit.
func screenFields(username, password string) ([]string, string) {
	var fields []string
	var first string
	if sig, hit := detection.Match(username); hit {
		fields = append(fields, "username")
		first = sig
	}
	if sig, hit := detection.Match(password); hit {
		fields = append(fields, "password")
		if first == "" {
			first = sig
		}
	}
	return fields, first
}
