package repositories

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// SecurityEventRepository stores security events in Postgres. It is both a
// sink and a reader for the event log.
type SecurityEventRepository struct {
	db *database.DB
}

func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func scanSecurityEventRow(row rowScanner) (models.SecurityEvent, error) {
	var e models.SecurityEvent

	err := row.Scan(
		&e.ID, &e.Category, &e.Message,
		&e.Username, &e.SessionID, &e.IPAddress,
		&e.Metadata, &e.CreatedAt,
	)
	if err != nil {
		return models.SecurityEvent{}, database.MapPostgresError(err)
	}

	return e, nil
}

func scanSecurityEventRows(rows pgx.Rows) ([]models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]models.SecurityEvent, 0)
	for rows.Next() {
		e, err := scanSecurityEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Write inserts one event. ID and CreatedAt are expected to be set.
func (r *SecurityEventRepository) Write(ctx context.Context, event models.SecurityEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = models.EventMetadata{}
	}

	query := `
		INSERT INTO security_events (id, category, message, username, session_id, ip_address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.ID, event.Category, event.Message,
		event.Username, event.SessionID, event.IPAddress,
		metadata, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", database.MapPostgresError(err))
	}
	return nil
}

// Recent returns the newest limit events in categories, oldest first
func (r *SecurityEventRepository) Recent(ctx context.Context, categories []string, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		return []models.SecurityEvent{}, nil
	}

	query := `
		SELECT id, category, message, username, session_id, ip_address, metadata, created_at
		FROM security_events
		WHERE category = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, pq.Array(categories), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	events, err := scanSecurityEventRows(rows)
	if err != nil {
		return nil, err
	}

	slices.Reverse(events)
	return events, nil
}

// DeleteOlderThan removes events created before cutoff and reports how many
// were removed.
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SET LOCAL statement_timeout = '30s'`); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM security_events WHERE created_at < $1`, cutoff)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge security events: %w", err)
	}
	return deleted, nil
}
