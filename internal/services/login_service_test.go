package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
)

type loginFixture struct {
	svc      *LoginService
	users    *MockCredentialStore
	tracker  *AbuseTracker
	recorder *MockEventRecorder
	sender   *MockOTPSender
	clock    *fakeClock
	tokens   *auth.TokenManager
}

func newLoginFixture(t *testing.T, settings models.SecuritySettings) *loginFixture {
	t.Helper()

	hashes := map[string]string{}
	for i, name := range []string{"alice", "bob"} {
		h, err := pkgauth.HashPassword(fmt.Sprintf("password%d", i+1))
		require.NoError(t, err)
		hashes[name] = h
	}

	users := &MockCredentialStore{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			h, ok := hashes[username]
			if !ok {
				return nil, models.ErrNotFound
			}
			return &models.User{ID: "id-" + username, Username: username, Email: username + "@example.com", PasswordHash: h}, nil
		},
	}

	clock := newFakeClock()
	tracker := newTestTracker(clock)
	sender := &MockOTPSender{}
	challenges := newTestChallenges(clock, tracker, sender, false)
	recorder := &MockEventRecorder{}
	tokens := auth.NewTokenManager("test-secret-32-characters-long!")

	svc := NewLoginService(users, tracker, challenges, StaticSettings{settings}, recorder, tokens,
		auth.NewTimingDelay(auth.TimingConfig{}), discardLogger())

	return &loginFixture{svc: svc, users: users, tracker: tracker, recorder: recorder, sender: sender, clock: clock, tokens: tokens}
}

func (f *loginFixture) login(username, password string, opts ...func(*models.LoginInput)) (*models.LoginResult, error) {
	in := models.LoginInput{Username: username, Password: password, SessionID: "sess-1", IPAddress: "127.0.0.1"}
	for _, o := range opts {
		o(&in)
	}
	return f.svc.Login(context.Background(), in)
}

func withOTP(code string) func(*models.LoginInput) {
	return func(in *models.LoginInput) { in.OTP = code }
}

func withSession(id string) func(*models.LoginInput) {
	return func(in *models.LoginInput) { in.SessionID = id }
}

func noTwoFactor() models.SecuritySettings {
	s := models.DefaultSecuritySettings()
	s.TwoFactor.Enabled = false
	return s
}

func TestLogin_MissingFields(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())

	for _, tc := range [][2]string{{"", "password1"}, {"alice", ""}, {"   ", " "}} {
		res, err := f.login(tc[0], tc[1])
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Equal(t, MsgFieldsRequired, res.Message)
	}
	assert.Zero(t, f.users.Calls)
	assert.Empty(t, f.recorder.Categories())
}

// Scenario: two-factor enabled, correct password, no code yet.
func TestLogin_RequiresSecondFactor(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())

	res, err := f.login("alice", "password1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Require2FA)
	assert.Equal(t, MsgEnterCode, res.Message)
	assert.Empty(t, res.Token)
	assert.Equal(t, []string{models.EventTwoFactor}, f.recorder.Categories())

	code := f.sender.LastCode("alice")
	require.NotEmpty(t, code)
	assert.NotContains(t, f.recorder.Events[0].Message, code, "event log must not carry the code")
}

func TestLogin_SecondFactorCompletes(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())

	_, err := f.login("alice", "password1")
	require.NoError(t, err)
	code := f.sender.LastCode("alice")

	res, err := f.login("alice", "password1", withOTP("000000x"))
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
	assert.True(t, res.Require2FA)
	assert.Equal(t, MsgBadCode, res.Message)

	res, err = f.login("alice", "password1", withOTP(code))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MsgLoginSuccessful, res.Message)

	claims, err := f.tokens.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	res, err = f.login("alice", "password1", withOTP(code))
	assert.ErrorIs(t, err, models.ErrInvalidOTP, "consumed code is rejected")
	assert.False(t, res.Success)

	assert.Equal(t, []string{
		models.EventTwoFactor, models.EventFailedTwoFactor, models.EventSuccessfulLogin, models.EventFailedTwoFactor,
	}, f.recorder.Categories())
}

// Scenario: tautology payload in the username.
func TestLogin_InjectionRejectedWithoutLookup(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())

	res, err := f.login("' OR 1=1 --", "anything")
	assert.ErrorIs(t, err, models.ErrInjectionDetected)
	assert.Equal(t, MsgInjection, res.Message)
	assert.Zero(t, f.users.Calls)
	assert.Equal(t, []string{models.EventSQLiAttempt}, f.recorder.Categories())
	assert.Equal(t, models.TrackerStats{}, f.tracker.Stats(), "counters untouched")
	assert.Equal(t, []string{"username"}, f.recorder.Events[0].Metadata["fields"])
}

func TestLogin_InjectionInPassword(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())

	_, err := f.login("alice", "x'; DROP TABLE users; --")
	assert.ErrorIs(t, err, models.ErrInjectionDetected)
	assert.Zero(t, f.users.Calls)
}

// Scenario: six failures for bob with max_attempts 5, then a seventh attempt.
func TestLogin_RateLimitThenBlockedSession(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())

	for i := 1; i <= 5; i++ {
		res, err := f.login("bob", "wrong")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials, "attempt %d", i)
		assert.Equal(t, MsgBadCredentials, res.Message)
		assert.Equal(t, i >= 2, res.RequireCaptcha, "attempt %d captcha flag", i)
	}

	res, err := f.login("bob", "wrong")
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
	assert.Equal(t, MsgRateLimited, res.Message)
	assert.True(t, res.RequireCaptcha)
	assert.True(t, f.tracker.IsBlocked("sess-1"))

	calls := f.users.Calls
	res, err = f.login("bob", "password2")
	assert.ErrorIs(t, err, models.ErrSessionBlocked)
	assert.Equal(t, MsgSessionBlocked, res.Message)
	assert.Equal(t, calls, f.users.Calls, "blocked session never reaches the credential check")

	cats := f.recorder.Categories()
	assert.Equal(t, models.EventRateLimited, cats[5])
	assert.Equal(t, models.EventBlockedSession, cats[6])
}

func TestLogin_OtherSessionStillRateLimitedForSameUser(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	for i := 0; i < 5; i++ {
		_, _ = f.login("bob", "wrong")
	}

	_, err := f.login("bob", "password2", withSession("sess-2"))
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
	assert.True(t, f.tracker.IsBlocked("sess-2"))
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())
	window := models.DefaultSecuritySettings().RateLimiting.Window()

	_, _ = f.login("alice", "nope")
	_, _ = f.login("alice", "nope")
	assert.Equal(t, 2, f.tracker.FailureCount("alice", window))

	res, err := f.login("alice", "password1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Token)
	assert.Zero(t, f.tracker.FailureCount("alice", window))
}

func TestLogin_UnknownUserCountsAsFailure(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	res, err := f.login("mallory", "password1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, MsgBadCredentials, res.Message)
	assert.Equal(t, 1, f.tracker.FailureCount("mallory", models.DefaultSecuritySettings().RateLimiting.Window()))
	assert.Contains(t, f.recorder.Events[0].Message, "Unknown user")
}

func TestLogin_BadCaptcha(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	res, err := f.login("alice", "password1", func(in *models.LoginInput) {
		in.Captcha = "12"
	})
	assert.ErrorIs(t, err, models.ErrBadCaptcha)
	assert.True(t, res.RequireCaptcha)
	assert.Equal(t, MsgBadCaptcha, res.Message)
	assert.Equal(t, []string{models.EventFailedCaptcha}, f.recorder.Categories())
	assert.Zero(t, f.users.Calls)
}

func TestLogin_CaptchaIgnoredWhenDisabled(t *testing.T) {
	s := noTwoFactor()
	s.Captcha.Enabled = false
	f := newLoginFixture(t, s)

	res, err := f.login("alice", "password1", func(in *models.LoginInput) {
		in.Captcha = "12"
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLogin_RateLimitingDisabled(t *testing.T) {
	s := noTwoFactor()
	s.RateLimiting.Enabled = false
	f := newLoginFixture(t, s)

	for i := 0; i < 8; i++ {
		_, err := f.login("bob", "wrong")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}
	assert.False(t, f.tracker.IsBlocked("sess-1"))
}

func TestLogin_StoreErrorIsServerError(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return nil, errors.New("connection refused")
	}

	res, err := f.login("alice", "password1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, MsgServerError, res.Message)
	assert.Zero(t, f.tracker.Stats().TrackedUsernames)
}

func TestLogin_EventLogFailureIsServerError(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())
	f.recorder.AppendFunc = func(ctx context.Context, event models.SecurityEvent) error {
		return errors.New("disk full")
	}

	res, err := f.login("alice", "password1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.False(t, res.Success)
	assert.Empty(t, res.Token)
}

func TestLogin_PanicBecomesServerError(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		panic("boom")
	}

	res, err := f.login("alice", "password1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, MsgServerError, res.Message)
}

func TestLogin_OTPDeliveryFailure(t *testing.T) {
	f := newLoginFixture(t, models.DefaultSecuritySettings())
	f.sender.SendOTPFunc = func(ctx context.Context, user *models.User, code string) error {
		return errors.New("ses throttled")
	}

	_, err := f.login("alice", "password1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestLogin_PaddedInjectionIsStillClassified(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	res, err := f.login("' OR 1=1 --"+strings.Repeat(" ", 300)+"x", "whatever")
	assert.ErrorIs(t, err, models.ErrInjectionDetected)
	assert.Equal(t, MsgInjection, res.Message)
	assert.Equal(t, []string{models.EventSQLiAttempt}, f.recorder.Categories())
	assert.Zero(t, f.users.Calls)

	res, err = f.login("alice", "x"+strings.Repeat("'", MaxPasswordLength))
	assert.ErrorIs(t, err, models.ErrInjectionDetected)
	assert.Equal(t, MsgInjection, res.Message)
}

func TestLogin_OversizedFieldsAfterScreening(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	res, err := f.login(strings.Repeat("a", MaxUsernameLength+1), "password1")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, MsgFieldsTooLong, res.Message)

	res, err = f.login("alice", strings.Repeat("p", MaxPasswordLength+1))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, MsgFieldsTooLong, res.Message)

	assert.Zero(t, f.users.Calls)
	assert.Empty(t, f.recorder.Categories())
}

func TestLogin_PasswordIsTrimmed(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	res, err := f.login("alice", " password1 ")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLogin_ServerErrorsAreRecorded(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *loginFixture)
	}{
		{"store error", func(f *loginFixture) {
			f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
				return nil, errors.New("connection refused")
			}
		}},
		{"panic", func(f *loginFixture) {
			f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
				panic("boom")
			}
		}},
		{"code delivery", func(f *loginFixture) {
			f.svc.settings = StaticSettings{models.DefaultSecuritySettings()}
			f.sender.SendOTPFunc = func(ctx context.Context, user *models.User, code string) error {
				return errors.New("ses throttled")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoginFixture(t, noTwoFactor())
			tt.setup(f)

			_, err := f.login("alice", "password1")
			assert.ErrorIs(t, err, models.ErrInternalServer)
			require.Equal(t, []string{models.EventServerError}, f.recorder.Categories())
			assert.NotContains(t, f.recorder.Events[0].Message, "password1")
		})
	}
}

func TestLogin_RememberMeExtendsToken(t *testing.T) {
	f := newLoginFixture(t, noTwoFactor())

	res, err := f.login("alice", "password1", func(in *models.LoginInput) { in.RememberMe = true })
	require.NoError(t, err)

	claims, err := f.tokens.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.RememberMe)
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, float64(7*24), lifetime.Hours())
}
