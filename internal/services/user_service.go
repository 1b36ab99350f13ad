package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/loginguard/internal/detection"
	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
)

// UserRepository defines the persistence operations on stored credentials
type UserRepository interface {
	CredentialStore
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

type UserService struct {
	repo     UserRepository
	settings SettingsProvider
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, settings SettingsProvider, logger *slog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		settings: settings,
		logger:   logger,
	}
}

// ErrMsgPasswordInjection is the policy message for passwords the login
// screen would reject.
const ErrMsgPasswordInjection = "must not contain ' # ; -- /* */ or SQL keyword sequences"

// CreateUser stores a new credential after checking the password policy.
// Usernames and passwords that would be rejected at login are refused here as well.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || detection.IsSuspicious(username) {
		return nil, fmt.Errorf("invalid username: %w", models.ErrBadRequest)
	}

	// login compares the trimmed password
	password = strings.TrimSpace(password)
	if err := pkgauth.ValidatePassword(password, s.settings.Snapshot().PasswordPolicy); err != nil {
		return nil, err
	}
	// the login screen rejects flagged passwords
	if detection.IsSuspicious(password) {
		return nil, &pkgauth.PasswordValidationError{Errors: []string{ErrMsgPasswordInjection}}
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.Create(ctx, &models.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created", slog.String("user_id", user.ID))
	return user, nil
}

// demoUsers are the development accounts alice..eve with password1..password5
var demoUsers = []string{"alice", "bob", "charlie", "dave", "eve"}

// SeedDemoUsers inserts the demo accounts when no users exist yet. The demo
// passwords do not satisfy the default policy, so they bypass ValidatePassword.
func (s *UserService) SeedDemoUsers(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	for i, name := range demoUsers {
		hash, err := pkgauth.HashPassword(fmt.Sprintf("password%d", i+1))
		if err != nil {
			return created, err
		}
		_, err = s.repo.Create(ctx, &models.User{
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: hash,
		})
		if err != nil && !errors.Is(err, models.ErrConflict) {
			return created, fmt.Errorf("seed user %s: %w", name, err)
		}
		if err == nil {
			created++
		}
	}

	s.logger.Info("seeded demo users", slog.Int("count", created))
	return created, nil
}
