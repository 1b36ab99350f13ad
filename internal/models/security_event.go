package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event categories written to the security log
const (
	EventSQLiAttempt     = "SQLI ATTEMPT"
	EventFailedCaptcha   = "FAILED CAPTCHA"
	EventBlockedSession  = "BLOCKED SESSION"
	EventRateLimited     = "RATE LIMITED"
	EventFailedLogin     = "FAILED LOGIN"
	EventTwoFactor       = "2FA"
	EventFailedTwoFactor = "FAILED 2FA"
	EventSuccessfulLogin = "SUCCESSFUL LOGIN"
	EventSecurity        = "SECURITY"
	EventSettings        = "SETTINGS"
	EventServerError     = "ERROR"
)

// VisibleCategories are the categories exposed through the log read view.
var VisibleCategories = []string{
	EventSuccessfulLogin,
	EventFailedLogin,
	EventSQLiAttempt,
	EventRateLimited,
	EventBlockedSession,
	EventSettings,
}

// IsVisibleCategory reports whether category belongs to the read view.
func IsVisibleCategory(category string) bool {
	for _, c := range VisibleCategories {
		if c == category {
			return true
		}
	}
	return false
}

const eventTimeLayout = "2006-01-02 15:04:05"

type SecurityEvent struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	Category  string        `db:"category" json:"category"`
	Message   string        `db:"message" json:"message"`
	Username  *string       `db:"username" json:"username,omitempty"`
	SessionID *string       `db:"session_id" json:"session_id,omitempty"`
	IPAddress *string       `db:"ip_address" json:"ip_address,omitempty"`
	Metadata  EventMetadata `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"timestamp"`
}

// Line renders the event in the plain-text log format:
// [2006-01-02 15:04:05] [IP: 1.2.3.4] [CATEGORY] message
func (e SecurityEvent) Line() string {
	ip := "unknown"
	if e.IPAddress != nil && *e.IPAddress != "" {
		ip = *e.IPAddress
	}
	return fmt.Sprintf("[%s] [IP: %s] [%s] %s", e.CreatedAt.Format(eventTimeLayout), ip, e.Category, e.Message)
}

// EventMetadata holds additional context for security events
type EventMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (em *EventMetadata) Scan(value interface{}) error {
	if value == nil {
		*em = make(EventMetadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*em = EventMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (em EventMetadata) Value() (driver.Value, error) {
	if em == nil {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(em))
}
