package ctxs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ctxKey string

const (
	txKey      ctxKey = "pgxTx"
	accountKey ctxKey = "account"
)

// Account is the authenticated principal attached by the auth middleware.
type Account struct {
	ID       uuid.UUID
	Username string
}

func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

func Tx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

func AccountFromCtx(ctx context.Context) (*Account, bool) {
	account, ok := ctx.Value(accountKey).(*Account)
	return account, ok && account != nil
}
