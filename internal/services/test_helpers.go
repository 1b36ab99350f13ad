package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/BradenHooton/loginguard/internal/models"
)

// MockCredentialStore implements CredentialStore for testing
type MockCredentialStore struct {
	mu                sync.Mutex
	Calls             int
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
}

func (m *MockCredentialStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

// MockEventRecorder implements EventRecorder for testing and keeps every event
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

// Categories returns the recorded categories in order
func (m *MockEventRecorder) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Category
	}
	return out
}

// MockSettingsStore implements SettingsStore for testing
type MockSettingsStore struct {
	LoadFunc func(ctx context.Context) (models.SecuritySettings, error)
	SaveFunc func(ctx context.Context, settings models.SecuritySettings) error
	Saved    []models.SecuritySettings
}

func (m *MockSettingsStore) Load(ctx context.Context) (models.SecuritySettings, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return models.DefaultSecuritySettings(), models.ErrNotFound
}

func (m *MockSettingsStore) Save(ctx context.Context, settings models.SecuritySettings) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, settings); err != nil {
			return err
		}
	}
	m.Saved = append(m.Saved, settings)
	return nil
}

// StaticSettings implements SettingsProvider with a fixed value
type StaticSettings struct {
	Settings models.SecuritySettings
}

func (s StaticSettings) Snapshot() models.SecuritySettings {
	return s.Settings
}

// MockOTPSender implements OTPSender and remembers the last code per username
type MockOTPSender struct {
	mu          sync.Mutex
	Codes       map[string]string
	SendOTPFunc func(ctx context.Context, user *models.User, code string) error
}

func (m *MockOTPSender) SendOTP(ctx context.Context, user *models.User, code string) error {
	if m.SendOTPFunc != nil {
		if err := m.SendOTPFunc(ctx, user, code); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Codes == nil {
		m.Codes = make(map[string]string)
	}
	m.Codes[user.Username] = code
	return nil
}

// LastCode returns the most recent code sent to username
func (m *MockOTPSender) LastCode(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Codes[username]
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	MockCredentialStore
	CreateFunc func(ctx context.Context, user *models.User) (*models.User, error)
	CountFunc  func(ctx context.Context) (int, error)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
