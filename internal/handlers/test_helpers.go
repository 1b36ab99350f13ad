package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSession puts a session id in the request context as the session
// middleware would
func WithSession(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(middleware.WithSessionID(req.Context(), sessionID))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockLoginProcessor implements LoginProcessor for testing
type MockLoginProcessor struct {
	LoginFunc func(ctx context.Context, in models.LoginInput) (*models.LoginResult, error)
	LastInput models.LoginInput
}

func (m *MockLoginProcessor) Login(ctx context.Context, in models.LoginInput) (*models.LoginResult, error) {
	m.LastInput = in
	if m.LoginFunc == nil {
		return &models.LoginResult{Message: services.MsgBadCredentials}, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, in)
}

// MockCaptchaIssuer implements CaptchaIssuer for testing
type MockCaptchaIssuer struct {
	IssueCaptchaFunc func(sessionID string) (string, error)
}

func (m *MockCaptchaIssuer) IssueCaptcha(sessionID string) (string, error) {
	if m.IssueCaptchaFunc == nil {
		return "What is 2 + 3?", nil
	}
	return m.IssueCaptchaFunc(sessionID)
}

// MockSettingsManager implements SettingsReader and SettingsManager for testing
type MockSettingsManager struct {
	Current    models.SecuritySettings
	UpdateFunc func(ctx context.Context, patch map[string]any, meta services.RequestMeta) (models.SecuritySettings, []string, error)
}

func (m *MockSettingsManager) Snapshot() models.SecuritySettings {
	return m.Current
}

func (m *MockSettingsManager) Update(ctx context.Context, patch map[string]any, meta services.RequestMeta) (models.SecuritySettings, []string, error) {
	if m.UpdateFunc == nil {
		return m.Current, nil, nil
	}
	return m.UpdateFunc(ctx, patch, meta)
}

// MockBlockResetter implements BlockResetter for testing
type MockBlockResetter struct {
	Cleared models.TrackerStats
	Resets  int
}

func (m *MockBlockResetter) ResetAll() models.TrackerStats {
	m.Resets++
	return m.Cleared
}

func (m *MockBlockResetter) Stats() models.TrackerStats {
	return m.Cleared
}

// MockEventRecorder implements services.EventRecorder for testing
type MockEventRecorder struct {
	mu         sync.Mutex
	Events     []models.SecurityEvent
	AppendFunc func(ctx context.Context, event models.SecurityEvent) error
}

func (m *MockEventRecorder) Append(ctx context.Context, event models.SecurityEvent) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// MockUserCreator implements UserCreator for testing
type MockUserCreator struct {
	CreateUserFunc func(ctx context.Context, username, email, password string) (*models.User, error)
}

func (m *MockUserCreator) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	if m.CreateUserFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateUserFunc(ctx, username, email, password)
}

// MockEventHistory implements EventHistory for testing
type MockEventHistory struct {
	RecentFunc func(ctx context.Context, limit int) ([]models.SecurityEvent, error)
	mu         sync.Mutex
	Limits     []int
}

func (m *MockEventHistory) Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	m.mu.Lock()
	m.Limits = append(m.Limits, limit)
	m.mu.Unlock()
	if m.RecentFunc == nil {
		return []models.SecurityEvent{}, nil
	}
	return m.RecentFunc(ctx, limit)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
