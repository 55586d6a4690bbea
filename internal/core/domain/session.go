package domain

import (
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Session identifies the account a request acts for. It is carried explicitly
// through the request context, never stored globally.
type Session struct {
	ID        string
	AccountID string
	Email     string
	ExpiresAt time.Time
}
