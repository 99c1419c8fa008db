package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
)

// AccountRepo is an in-memory account store. It hands out copies and serializes
// updates with one mutex, so an update closure sees the latest committed state and
// a failed closure leaves nothing behind.
type AccountRepo struct {
	*EventRepo
	mu         sync.Mutex
	dbByID     map[uuid.UUID]*account.Account
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
	failWith   error
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		EventRepo:  NewEventRepo(),
		dbByID:     make(map[uuid.UUID]*account.Account),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

// Unavailable makes every following call fail with the persistence unavailable error.
func (r *AccountRepo) Unavailable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failWith = errorx.NewPersistenceUnavailable().WithCause(errors.New("mock store is down"))
}

func (r *AccountRepo) SaveAccount(ctx context.Context, acc *account.Account) error {
	if acc == nil {
		return errors.New("account cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return r.failWith
	}
	if _, exists := r.byUsername[acc.Username()]; exists {
		return account.ErrUsernameTaken
	}
	if _, exists := r.byEmail[acc.Email()]; exists {
		return account.ErrEmailTaken
	}
	if _, exists := r.dbByID[acc.ID()]; exists {
		return errorx.NewDuplicateEntry()
	}

	r.store(acc)
	r.appendEvents(acc.GetUncommittedEvents()...)
	acc.MarkEventsAsCommitted()

	return nil
}

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return nil, r.failWith
	}
	acc, ok := r.dbByID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return clone(acc), nil
}

func (r *AccountRepo) GetAccountByUsername(ctx context.Context, username string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return nil, r.failWith
	}
	id, ok := r.byUsername[username]
	if !ok {
		return nil, account.ErrNotFound
	}
	return clone(r.dbByID[id]), nil
}

func (r *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return nil, r.failWith
	}
	id, ok := r.byEmail[email]
	if !ok {
		return nil, account.ErrNotFound
	}
	return clone(r.dbByID[id]), nil
}

func (r *AccountRepo) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return false, r.failWith
	}
	id, ok := r.byUsername[username]
	if !ok {
		return false, nil
	}
	return r.dbByID[id].IsVerified(), nil
}

func (r *AccountRepo) UpdateAccountByUsername(
	ctx context.Context,
	username string,
	fn func(context.Context, *account.Account) error,
) error {
	return r.update(ctx, func() (uuid.UUID, bool) {
		id, ok := r.byUsername[username]
		return id, ok
	}, fn)
}

func (r *AccountRepo) UpdateAccountByEmail(
	ctx context.Context,
	email string,
	fn func(context.Context, *account.Account) error,
) error {
	return r.update(ctx, func() (uuid.UUID, bool) {
		id, ok := r.byEmail[email]
		return id, ok
	}, fn)
}

func (r *AccountRepo) update(
	ctx context.Context,
	lookup func() (uuid.UUID, bool),
	fn func(context.Context, *account.Account) error,
) error {
	if fn == nil {
		return errors.New("update function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return r.failWith
	}
	id, ok := lookup()
	if !ok {
		return account.ErrNotFound
	}

	acc := clone(r.dbByID[id])
	fnerr := fn(ctx, acc)
	if fnerr != nil && !errorx.IsPersistable(fnerr) {
		return fmt.Errorf("failed to apply update function: %w", fnerr)
	}

	if owner, taken := r.byUsername[acc.Username()]; taken && owner != acc.ID() {
		return account.ErrUsernameTaken
	}

	old := r.dbByID[id]
	delete(r.byUsername, old.Username())
	delete(r.byEmail, old.Email())
	r.store(acc)
	r.appendEvents(acc.GetUncommittedEvents()...)
	acc.MarkEventsAsCommitted()

	if fnerr != nil {
		return fmt.Errorf("failed to apply update function: %w", fnerr)
	}
	return nil
}

func (r *AccountRepo) store(acc *account.Account) {
	stored := clone(acc)
	r.dbByID[stored.ID()] = stored
	r.byUsername[stored.Username()] = stored.ID()
	r.byEmail[stored.Email()] = stored.ID()
}

func (r *AccountRepo) SeedAccount(t *testing.T, acc *account.Account) {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[acc.Email()]; exists {
		t.Fatalf("account with email %s already exists", acc.Email())
	}
	if _, exists := r.byUsername[acc.Username()]; exists {
		t.Fatalf("account with username %s already exists", acc.Username())
	}

	r.store(acc)
}

// Account returns a copy of the stored account, failing the test when it is missing.
func (r *AccountRepo) Account(t *testing.T, email string) *account.Account {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		t.Fatalf("expected account with email %s to exist, but it does not", email)
		return nil
	}
	return clone(r.dbByID[id])
}

func (r *AccountRepo) AssertAccountExistsByEmail(t *testing.T, email string) *account.AccountAssertion {
	t.Helper()
	return account.NewAccountAssertion(r.Account(t, email))
}

func (r *AccountRepo) AssertAccountNotExistsByEmail(t *testing.T, email string) *AccountRepo {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		t.Errorf("expected account with email %s to not exist, but it does", email)
	}
	return r
}

func (r *AccountRepo) AssertAccountCount(t *testing.T, expected int) *AccountRepo {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.dbByID) != expected {
		t.Errorf("expected %d accounts, but got %d", expected, len(r.dbByID))
	}
	return r
}

func (r *AccountRepo) AssertEventCount(t *testing.T, count int) *AccountRepo {
	t.Helper()
	r.EventRepo.AssertEventCount(t, count)
	return r
}

func clone(acc *account.Account) *account.Account {
	return account.Rehydrate(account.RehydrateArgs{
		ID:         acc.ID(),
		Username:   acc.Username(),
		Email:      acc.Email(),
		PassHash:   append([]byte(nil), acc.PassHash()...),
		Verified:   acc.IsVerified(),
		VerifiedAt: acc.VerifiedAt(),
		Code:       acc.VerificationCode(),
		CreatedAt:  acc.CreatedAt(),
		UpdatedAt:  acc.UpdatedAt(),
	})
}
