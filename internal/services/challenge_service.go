package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/BradenHooton/loginguard/internal/models"
)

// OTPSender delivers a one-time code to a user
type OTPSender interface {
	SendOTP(ctx context.Context, user *models.User, code string) error
}

// FailureCounter exposes the live failure count used for CAPTCHA escalation
type FailureCounter interface {
	FailureCount(username string, window time.Duration) int
}

// ChallengeConfig holds configuration for CAPTCHA and one-time code challenges
type ChallengeConfig struct {
	OTPTTL             time.Duration
	CaptchaTTL         time.Duration
	MaxOTPAttempts     int
	AllowClientCaptcha bool
}

type otpEntry struct {
	code        string
	issuedAt    time.Time
	expiresAt   time.Time
	failedTries int
}

type captchaEntry struct {
	answer    string
	expiresAt time.Time
}

// ChallengeService issues and verifies CAPTCHA challenges and one-time codes
type ChallengeService struct {
	mu       sync.Mutex
	otps     map[string]*otpEntry
	captchas map[string]captchaEntry

	counter  FailureCounter
	senders  map[string]OTPSender
	fallback OTPSender
	config   ChallengeConfig
	nowFunc  func() time.Time
	logger   *slog.Logger
}

// NewChallengeService creates a ChallengeService. senders maps a two-factor
// method to its delivery channel; fallback is used for any other method.
func NewChallengeService(counter FailureCounter, senders map[string]OTPSender, fallback OTPSender, config ChallengeConfig, logger *slog.Logger) *ChallengeService {
	if config.MaxOTPAttempts <= 0 {
		config.MaxOTPAttempts = 5
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = 5 * time.Minute
	}
	if config.CaptchaTTL <= 0 {
		config.CaptchaTTL = 5 * time.Minute
	}
	if senders == nil {
		senders = map[string]OTPSender{}
	}

	return &ChallengeService{
		otps:     make(map[string]*otpEntry),
		captchas: make(map[string]captchaEntry),
		counter:  counter,
		senders:  senders,
		fallback: fallback,
		config:   config,
		nowFunc:  time.Now,
		logger:   logger,
	}
}

// ShouldRequireCaptcha reports whether CAPTCHA is enabled and the username has
// reached the trigger threshold within the rate-limit window.
func (s *ChallengeService) ShouldRequireCaptcha(username string, settings models.SecuritySettings) bool {
	if !settings.Captcha.Enabled {
		return false
	}
	count := s.counter.FailureCount(username, settings.RateLimiting.Window())
	return count >= settings.Captcha.TriggerThreshold
}

// IssueCaptcha creates a server-held arithmetic challenge for the session,
// replacing any earlier one, and returns the question text.
func (s *ChallengeService) IssueCaptcha(sessionID string) (string, error) {
	a, err := randInt(1, 10)
	if err != nil {
		return "", fmt.Errorf("failed to generate captcha: %w", err)
	}
	b, err := randInt(1, 10)
	if err != nil {
		return "", fmt.Errorf("failed to generate captcha: %w", err)
	}

	s.mu.Lock()
	s.captchas[sessionID] = captchaEntry{
		answer:    strconv.Itoa(a + b),
		expiresAt: s.nowFunc().Add(s.config.CaptchaTTL),
	}
	s.mu.Unlock()

	return fmt.Sprintf("What is %d + %d?", a, b), nil
}

// VerifyCaptcha checks response against the session's server-held challenge,
// consuming it. Without a server challenge the client-supplied expected value
// is only honoured when AllowClientCaptcha is set.
func (s *ChallengeService) VerifyCaptcha(sessionID, response, clientExpected string) bool {
	response = strings.TrimSpace(response)

	s.mu.Lock()
	entry, ok := s.captchas[sessionID]
	if ok {
		delete(s.captchas, sessionID)
	}
	now := s.nowFunc()
	s.mu.Unlock()

	if ok {
		if now.After(entry.expiresAt) {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(response), []byte(entry.answer)) == 1
	}

	if !s.config.AllowClientCaptcha {
		return false
	}
	clientExpected = strings.TrimSpace(clientExpected)
	return clientExpected != "" && response == clientExpected
}

// IssueOTP generates a 6-digit code for the user, stores it (replacing any
// pending code) and delivers it through the sender for method.
func (s *ChallengeService) IssueOTP(ctx context.Context, user *models.User, method string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := s.nowFunc()
	entry := &otpEntry{
		code:      code,
		issuedAt:  now,
		expiresAt: now.Add(s.config.OTPTTL),
	}
	s.mu.Lock()
	s.otps[user.Username] = entry
	s.mu.Unlock()

	sender := s.senders[method]
	if sender == nil {
		sender = s.fallback
	}
	if sender == nil {
		s.discardOTP(user.Username, entry)
		return fmt.Errorf("no delivery channel for method %q", method)
	}

	if err := sender.SendOTP(ctx, user, code); err != nil {
		s.discardOTP(user.Username, entry)
		return fmt.Errorf("failed to deliver verification code: %w", err)
	}

	return nil
}

// discardOTP removes entry unless a later IssueOTP has replaced it.
func (s *ChallengeService) discardOTP(username string, entry *otpEntry) {
	s.mu.Lock()
	if s.otps[username] == entry {
		delete(s.otps, username)
	}
	s.mu.Unlock()
}

// VerifyOTP checks candidate against the pending code for username. A match
// consumes the code. Expired codes, and codes that reached MaxOTPAttempts
// mismatches, are discarded.
func (s *ChallengeService) VerifyOTP(username, candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.otps[username]
	if !ok {
		return false
	}

	if s.nowFunc().After(entry.expiresAt) {
		delete(s.otps, username)
		return false
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(candidate)), []byte(entry.code)) == 1 {
		delete(s.otps, username)
		return true
	}

	entry.failedTries++
	if entry.failedTries >= s.config.MaxOTPAttempts {
		delete(s.otps, username)
		s.logger.Warn("verification code discarded after too many attempts",
			slog.Int("attempts", entry.failedTries))
	}
	return false
}

// PurgeExpired removes expired codes and CAPTCHA challenges.
func (s *ChallengeService) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	purged := 0
	for username, entry := range s.otps {
		if now.After(entry.expiresAt) {
			delete(s.otps, username)
			purged++
		}
	}
	for sessionID, entry := range s.captchas {
		if now.After(entry.expiresAt) {
			delete(s.captchas, sessionID)
			purged++
		}
	}
	return purged
}

// generateCode derives a 6-digit HOTP value from a fresh random secret.
func generateCode() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	counterBytes := make([]byte, 8)
	if _, err := rand.Read(counterBytes); err != nil {
		return "", err
	}

	return hotp.GenerateCodeCustom(
		base32.StdEncoding.EncodeToString(secret),
		binary.BigEndian.Uint64(counterBytes),
		hotp.ValidateOpts{Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1},
	)
}

// randInt returns a uniformly random integer in [min, max].
func randInt(min, max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(n.Int64()), nil
}
