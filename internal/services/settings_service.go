package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BradenHooton/loginguard/internal/models"
)

// SettingsStore persists the security settings
type SettingsStore interface {
	Load(ctx context.Context) (models.SecuritySettings, error)
	Save(ctx context.Context, settings models.SecuritySettings) error
}

// SettingsService holds the live security settings. Readers get a value copy
// so one request sees one consistent policy even while an update lands.
type SettingsService struct {
	mu       sync.RWMutex
	current  models.SecuritySettings
	store    SettingsStore
	recorder EventRecorder
	logger   *slog.Logger
}

// NewSettingsService loads settings from store, falling back to defaults when
// the store is empty or unreadable.
func NewSettingsService(ctx context.Context, store SettingsStore, recorder EventRecorder, logger *slog.Logger) *SettingsService {
	settings, err := store.Load(ctx)
	switch {
	case errors.Is(err, models.ErrNotFound):
		logger.Info("no stored security settings, using defaults")
	case err != nil:
		logger.Error("failed to load security settings, using defaults", slog.Any("error", err))
	}

	return &SettingsService{
		current:  settings,
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// Snapshot returns a copy of the current settings
func (s *SettingsService) Snapshot() models.SecuritySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges the known keys of patch into the current settings, persists
// the result and records a SETTINGS event. Unknown keys are returned, not
// applied. Nothing changes if persisting fails.
func (s *SettingsService) Update(ctx context.Context, patch map[string]any, meta RequestMeta) (models.SecuritySettings, []string, error) {
	s.mu.Lock()
	merged, ignored := s.current.Merge(patch)
	merged.Version = s.current.Version + 1

	if err := s.store.Save(ctx, merged); err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to save security settings", slog.Any("error", err))
		return s.Snapshot(), ignored, fmt.Errorf("save settings: %w", models.ErrInternalServer)
	}
	s.current = merged
	s.mu.Unlock()

	if len(ignored) > 0 {
		s.logger.Warn("ignored unknown settings keys", slog.Any("keys", ignored))
	}

	event := newEvent(models.EventSettings, "Security settings updated", "", meta)
	event.Metadata = models.EventMetadata{"version": merged.Version}
	if err := s.recorder.Append(ctx, event); err != nil {
		s.logger.Error("failed to record settings update", slog.Any("error", err))
		return merged, ignored, fmt.Errorf("record settings event: %w", models.ErrInternalServer)
	}

	return merged, ignored, nil
}
