package cmd

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
)

// Repo stores accounts. The Update* methods run fn on the latest state while holding
// the account exclusively; the change and its events are committed when fn returns nil
// or a persistable error, and discarded otherwise. Missing accounts yield account.ErrNotFound.
type Repo interface {
	SaveAccount(ctx context.Context, acc *account.Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*account.Account, error)
	UpdateAccountByUsername(ctx context.Context, username string, fn func(context.Context, *account.Account) error) error
	UpdateAccountByEmail(ctx context.Context, email string, fn func(context.Context, *account.Account) error) error
	IsUsernameTaken(ctx context.Context, username string) (bool, error)
}

type VerificationDispatcher interface {
	DispatchVerification(ctx context.Context, n mail.VerificationNotice) mail.Result
}
