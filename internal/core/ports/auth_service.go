package ports

import (
	"context"
	"io"

	"github.com/facegate/facegate/internal/core/domain"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// RegisterInput is the registration form after transport decoding.
type RegisterInput struct {
	Email    string
	Password string
	Image    io.Reader
}

// LoginResult is returned by both login modes.
type LoginResult struct {
	Token    string
	Account  *domain.Account
	Session  *domain.Session
	Distance float64
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	LoginPassword(ctx context.Context, email, password string) (*LoginResult, error)
	LoginFace(ctx context.Context, image io.Reader) (*LoginResult, error)
	Logout(ctx context.Context, session *domain.Session) error
	CurrentAccount(ctx context.Context, session *domain.Session) (*domain.Account, error)
}
