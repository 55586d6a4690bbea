package domain

import (
	"errors"
	"time"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// MaxPasswordBytes is the longest password bcrypt accepts, in bytes.
const MaxPasswordBytes = 72

// Account is the persisted account record. Authentication capability lives in
// the services that operate on it, not on the record itself.
type Account struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	FaceTemplate    []byte    `json:"-"`
	TemplateVersion int       `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasFaceTemplate reports whether face login is available for the account.
func (a *Account) HasFaceTemplate() bool {
	return a != nil && len(a.FaceTemplate) > 0
}
