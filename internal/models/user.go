package models

import (
	"time"
)

// User is a stored credential. PasswordHash holds the salted PBKDF2 form
// (or a legacy bcrypt hash).
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
