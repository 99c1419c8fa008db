package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
	"gitlab.com/insightbox/insightbox-backend/pkg/postgres"
)

var (
	ErrNoRowsAffected = errors.New("no rows affected")
	ErrNilFunc        = errors.New("update function cannot be nil")
)

const (
	usernameConstraint = "accounts_username_key"
	emailConstraint    = "accounts_email_key"
)

// mapError turns driver errors into the errors callers branch on. Errors that
// already carry a domain meaning pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var i18nErr *errorx.I18nError
	if errors.As(err, &i18nErr) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return account.ErrNotFound.WithCause(err)
	}
	if constraint, ok := postgres.UniqueViolation(err); ok {
		switch constraint {
		case usernameConstraint:
			return account.ErrUsernameTaken.WithCause(err)
		case emailConstraint:
			return account.ErrEmailTaken.WithCause(err)
		default:
			return errorx.NewDuplicateEntry().WithCause(err)
		}
	}
	if isUnavailable(err) {
		return errorx.NewPersistenceUnavailable().WithCause(err)
	}

	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, gateway.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	return pgconn.Timeout(err)
}
