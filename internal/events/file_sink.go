package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/BradenHooton/loginguard/internal/models"
)

// FileSinkConfig configures the rotating event file
type FileSinkConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// fileRecord is one JSON line in the event file
type fileRecord struct {
	models.SecurityEvent
	Line string `json:"line"`
}

// FileSink appends events as JSON lines to a rotating file and reads back
// the newest events from the active file.
type FileSink struct {
	mu     sync.Mutex
	path   string
	writer *lumberjack.Logger
}

// NewFileSink creates a FileSink
func NewFileSink(config FileSinkConfig) *FileSink {
	maxSize := config.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}

	return &FileSink{
		path: config.Path,
		writer: &lumberjack.Logger{
			Filename:   config.Path,
			MaxSize:    maxSize, // megabytes
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   false,
		},
	}
}

func (s *FileSink) Write(_ context.Context, event models.SecurityEvent) error {
	data, err := json.Marshal(fileRecord{SecurityEvent: event, Line: event.Line()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event file: %w", err)
	}
	return nil
}

// Recent scans the active file. Rotated backups are not read.
func (s *FileSink) Recent(_ context.Context, categories []string, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		return []models.SecurityEvent{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.SecurityEvent{}, nil
		}
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()

	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}

	// ring buffer of the newest matches
	ring := make([]models.SecurityEvent, 0, limit)
	next := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec fileRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if !allowed[rec.Category] {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, rec.SecurityEvent)
			continue
		}
		ring[next] = rec.SecurityEvent
		next = (next + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}

	out := make([]models.SecurityEvent, 0, len(ring))
	out = append(out, ring[next:]...)
	out = append(out, ring[:next]...)
	return out, nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
