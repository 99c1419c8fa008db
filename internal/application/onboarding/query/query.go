package query

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
)

var tracer = otel.Tracer("insightbox/application/onboarding/query")

type AccountGetter interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*account.Account, error)
}

type UsernameChecker interface {
	IsUsernameTaken(ctx context.Context, username string) (bool, error)
}

type Account struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func accountView(acc *account.Account) Account {
	v := Account{
		ID:        acc.ID(),
		Username:  acc.Username(),
		Email:     acc.Email(),
		Verified:  acc.IsVerified(),
		CreatedAt: acc.CreatedAt(),
	}
	if acc.IsVerified() {
		at := acc.VerifiedAt()
		v.VerifiedAt = &at
	}
	return v
}
