package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BradenHooton/loginguard/internal/models"
)

// SettingsFileRepository persists security settings as an indented JSON file
type SettingsFileRepository struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSettingsFileRepository creates a new SettingsFileRepository
func NewSettingsFileRepository(path string, logger *slog.Logger) *SettingsFileRepository {
	return &SettingsFileRepository{path: path, logger: logger}
}

// Load reads the settings file. Keys missing from the file keep their default
// value and unknown or mistyped keys are ignored. A missing file yields
// ErrNotFound.
func (r *SettingsFileRepository) Load(_ context.Context) (models.SecuritySettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defaults := models.DefaultSecuritySettings()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults, models.ErrNotFound
		}
		return defaults, fmt.Errorf("failed to read settings file: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return defaults, fmt.Errorf("failed to parse settings file: %w", err)
	}

	settings, ignored := defaults.Merge(raw)
	if v, ok := raw["version"].(float64); ok && v >= 0 {
		settings.Version = int64(v)
	}
	for _, path := range ignored {
		if path == "version" {
			continue
		}
		r.logger.Warn("ignoring unknown settings key", slog.String("key", path), slog.String("file", r.path))
	}

	return settings, nil
}

// Save writes settings to a temp file and renames it over the original
func (r *SettingsFileRepository) Save(_ context.Context, settings models.SecuritySettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
