package ports

import (
	"context"
	"iter"

	"github.com/facegate/facegate/internal/core/domain"
)

// AccountRepository defines the interface for account persistence.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Delete(ctx context.Context, email string) error

	// SetTemplate overwrites the template blob of an existing account.
	// It returns domain.ErrAccountNotFound when no account has that email.
	SetTemplate(ctx context.Context, email string, blob []byte, version int) error

	// ScanTemplates streams every account that has a template attached. A
	// non-nil error aborts the sequence.
	ScanTemplates(ctx context.Context) iter.Seq2[domain.StoredTemplate, error]
}
