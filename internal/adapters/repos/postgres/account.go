package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/postgres"
	"gitlab.com/insightbox/insightbox-backend/pkg/watermillx"
)

const (
	insertAccountQuery = `INSERT INTO accounts (` + accountColumns + `)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`

	updateAccountQuery = `
        UPDATE accounts
        SET username = $2, email = $3, pass_hash = $4, verified = $5, verified_at = $6,
            verification_code = $7, code_issued_at = $8, code_expires_at = $9,
            code_consumed = $10, code_attempts = $11, created_at = $12, updated_at = $13
        WHERE id = $1;`

	isUsernameTakenQuery = `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1 AND verified);`
)

type AccountRepo struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	gw      *gateway.Gateway[*pgxpool.Pool]
	wlogger watermill.LoggerAdapter
}

// NewAccountRepo creates a new instance of AccountRepo. The pool is taken from gw
// on every call, so the repo keeps working once a lost database comes back.
//
// WARNING: panics if gw is nil
func NewAccountRepo(gw *gateway.Gateway[*pgxpool.Pool], t trace.Tracer, l *slog.Logger) *AccountRepo {
	if gw == nil {
		panic("postgres gateway cannot be nil")
	}
	if t == nil {
		t = tracer
	}
	if l == nil {
		l = logger
	}

	return &AccountRepo{
		tracer:  t,
		logger:  l,
		gw:      gw,
		wlogger: watermillx.NewSlogAdapter(l, slog.LevelDebug),
	}
}

func (r *AccountRepo) pool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := r.gw.Connect(ctx)
	if err != nil {
		return nil, errorx.NewPersistenceUnavailable().WithCause(err)
	}
	return pool, nil
}

func (r *AccountRepo) SaveAccount(ctx context.Context, acc *account.Account) error {
	const op = "postgres.AccountRepo.SaveAccount"
	ctx, span := r.tracer.Start(ctx, "AccountRepo.SaveAccount")
	defer span.End()

	pool, err := r.pool(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return errorx.Wrap(err, op)
	}

	err = postgres.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		res, err := tx.Exec(ctx, insertAccountQuery, DomainToAccountDTO(acc).args()...)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return ErrNoRowsAffected
		}

		return watermillx.Publish(ctx, tx, r.wlogger, acc.GetUncommittedEvents()...)
	})
	if err != nil {
		err = mapError(err)
		otelx.RecordSpanError(span, err, "failed to save account")
		return errorx.Wrap(err, op)
	}

	acc.MarkEventsAsCommitted()
	return nil
}

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.GetAccountByID")
	defer span.End()

	return r.getAccount(ctx, span, "postgres.AccountRepo.GetAccountByID", "id", id)
}

func (r *AccountRepo) GetAccountByUsername(ctx context.Context, username string) (*account.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.GetAccountByUsername")
	defer span.End()

	return r.getAccount(ctx, span, "postgres.AccountRepo.GetAccountByUsername", "username", username)
}

func (r *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.GetAccountByEmail")
	defer span.End()

	return r.getAccount(ctx, span, "postgres.AccountRepo.GetAccountByEmail", "email", email)
}

// column is always one of the literals above, never user input.
func (r *AccountRepo) getAccount(ctx context.Context, span trace.Span, op, column string, value any) (*account.Account, error) {
	pool, err := r.pool(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return nil, errorx.Wrap(err, op)
	}

	query := fmt.Sprintf("SELECT %s FROM accounts WHERE %s = $1;", accountColumns, column)
	dto, err := scanAccount(pool.QueryRow(ctx, query, value))
	if err != nil {
		err = mapError(err)
		if !errorx.IsNotFound(err) {
			otelx.RecordSpanError(span, err, "failed to get account")
		}
		return nil, errorx.Wrap(err, op)
	}

	return AccountToDomain(dto), nil
}

func (r *AccountRepo) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	const op = "postgres.AccountRepo.IsUsernameTaken"
	ctx, span := r.tracer.Start(ctx, "AccountRepo.IsUsernameTaken")
	defer span.End()

	pool, err := r.pool(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return false, errorx.Wrap(err, op)
	}

	var taken bool
	if err := pool.QueryRow(ctx, isUsernameTakenQuery, username).Scan(&taken); err != nil {
		err = mapError(err)
		otelx.RecordSpanError(span, err, "failed to check username")
		return false, errorx.Wrap(err, op)
	}

	return taken, nil
}

func (r *AccountRepo) UpdateAccountByUsername(
	ctx context.Context,
	username string,
	fn func(ctx context.Context, acc *account.Account) error,
) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.UpdateAccountByUsername")
	defer span.End()

	return r.updateAccount(ctx, span, "postgres.AccountRepo.UpdateAccountByUsername", "username", username, fn)
}

func (r *AccountRepo) UpdateAccountByEmail(
	ctx context.Context,
	email string,
	fn func(ctx context.Context, acc *account.Account) error,
) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.UpdateAccountByEmail")
	defer span.End()

	return r.updateAccount(ctx, span, "postgres.AccountRepo.UpdateAccountByEmail", "email", email, fn)
}

// updateAccount locks the row for the duration of fn, so concurrent updates of one
// account run one after another. A persistable error from fn is stored together
// with the account and returned after the commit.
func (r *AccountRepo) updateAccount(
	ctx context.Context,
	span trace.Span,
	op, column string,
	value any,
	fn func(ctx context.Context, acc *account.Account) error,
) error {
	if fn == nil {
		otelx.RecordSpanError(span, ErrNilFunc, "update function cannot be nil")
		return errorx.Wrap(ErrNilFunc, op)
	}

	pool, err := r.pool(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return errorx.Wrap(err, op)
	}

	selectquery := fmt.Sprintf("SELECT %s FROM accounts WHERE %s = $1 FOR UPDATE;", accountColumns, column)

	var fnerr error
	err = postgres.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		dto, err := scanAccount(tx.QueryRow(ctx, selectquery, value))
		if err != nil {
			return mapError(err)
		}

		acc := AccountToDomain(dto)

		fnerr = fn(ctx, acc)
		if fnerr != nil && !errorx.IsPersistable(fnerr) {
			return fnerr
		}

		res, err := tx.Exec(ctx, updateAccountQuery, DomainToAccountDTO(acc).args()...)
		if err != nil {
			return mapError(err)
		}
		if res.RowsAffected() == 0 {
			return ErrNoRowsAffected
		}

		if err := watermillx.Publish(ctx, tx, r.wlogger, acc.GetUncommittedEvents()...); err != nil {
			return err
		}
		acc.MarkEventsAsCommitted()

		return nil
	})
	if err != nil {
		err = mapError(err)
		if !errorx.IsNotFound(err) {
			otelx.RecordSpanError(span, err, "failed to update account")
		}
		return errorx.Wrap(err, op)
	}

	if fnerr != nil {
		r.logger.DebugContext(ctx, "update stored with a failed outcome", "op", op, "error", fnerr)
		return errorx.Wrap(fnerr, op)
	}
	return nil
}
