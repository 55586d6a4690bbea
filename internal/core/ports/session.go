package ports

import (
	"context"
	"time"

	"github.com/facegate/facegate/internal/core/domain"
)

// SessionStore persists live session ids.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// SessionManager establishes and resolves authenticated sessions.
type SessionManager interface {
	Establish(ctx context.Context, account *domain.Account) (string, *domain.Session, error)
	Resolve(ctx context.Context, token string) (*domain.Session, error)
	Revoke(ctx context.Context, sessionID string) error
}
