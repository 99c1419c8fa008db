package postgres_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	insightbox "gitlab.com/insightbox/insightbox-backend"
	"gitlab.com/insightbox/insightbox-backend/internal/adapters/repos/postgres"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/env"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
	pgpkg "gitlab.com/insightbox/insightbox-backend/pkg/postgres"
	"gitlab.com/insightbox/insightbox-backend/pkg/watermillx"
	"gitlab.com/insightbox/insightbox-backend/tests/builders"
)

type AccountRepoSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	repo      *postgres.AccountRepo
}

func TestAccountRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(AccountRepoSuite))
}

func (s *AccountRepoSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("insightbox_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.Require().NoError(pgpkg.Migrate(dsn, insightbox.Migrations, "migrations"))

	s.pool, err = pgpkg.NewPgxPool(ctx, dsn, env.Test)
	s.Require().NoError(err)

	s.Require().NoError(watermillx.InitializeEventSchema(s.pool, watermillx.NewSlogAdapter(slog.New(slog.DiscardHandler), slog.LevelDebug), account.EventStreamName))

	gw := gateway.Connected(pgpkg.GatewayName, s.pool, nil)
	s.repo = postgres.NewAccountRepo(gw, nil, nil)
}

func (s *AccountRepoSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *AccountRepoSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE accounts;")
	s.Require().NoError(err)
}

func (s *AccountRepoSuite) TestSaveAndGet() {
	ctx := s.T().Context()
	acc := builders.NewAccountBuilder().Build()

	s.Require().NoError(s.repo.SaveAccount(ctx, acc))

	byID, err := s.repo.GetAccountByID(ctx, acc.ID())
	s.Require().NoError(err)
	byUsername, err := s.repo.GetAccountByUsername(ctx, acc.Username())
	s.Require().NoError(err)
	byEmail, err := s.repo.GetAccountByEmail(ctx, acc.Email())
	s.Require().NoError(err)

	for _, got := range []*account.Account{byID, byUsername, byEmail} {
		s.Equal(acc.ID(), got.ID())
		s.Equal(acc.PassHash(), got.PassHash())
		s.False(got.IsVerified())
		s.Equal(builders.DefaultCode, got.VerificationCode().Value())
		s.WithinDuration(acc.VerificationCode().ExpiresAt(), got.VerificationCode().ExpiresAt(), time.Millisecond)
		s.True(got.VerifiedAt().IsZero())
	}
}

func (s *AccountRepoSuite) TestSaveAccount_Conflicts() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	tests := []struct {
		name    string
		acc     *account.Account
		wantErr error
	}{
		{
			name:    "same username",
			acc:     builders.NewAccountBuilder().WithEmail("other@example.com").Build(),
			wantErr: account.ErrUsernameTaken,
		},
		{
			name:    "same email",
			acc:     builders.NewAccountBuilder().WithUsername("bob").Build(),
			wantErr: account.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.repo.SaveAccount(ctx, tt.acc)
			s.ErrorIs(err, tt.wantErr)
		})
	}
}

func (s *AccountRepoSuite) TestGetAccount_NotFound() {
	_, err := s.repo.GetAccountByEmail(s.T().Context(), "nobody@example.com")
	s.ErrorIs(err, account.ErrNotFound)
}

func (s *AccountRepoSuite) TestIsUsernameTaken() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().
		WithUsername("bob").WithEmail("bob@example.com").Verified().Build()))

	taken, err := s.repo.IsUsernameTaken(ctx, builders.DefaultUsername)
	s.Require().NoError(err)
	s.False(taken, "an unverified account does not hold its username")

	taken, err = s.repo.IsUsernameTaken(ctx, "bob")
	s.Require().NoError(err)
	s.True(taken)
}

func (s *AccountRepoSuite) TestUpdate_RedeemStoresVerification() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	err := s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
		return acc.RedeemCode(builders.DefaultCode, time.Now())
	})
	s.Require().NoError(err)

	got, err := s.repo.GetAccountByUsername(ctx, builders.DefaultUsername)
	s.Require().NoError(err)
	s.True(got.IsVerified())
	s.True(got.VerificationCode().Consumed())
	s.False(got.VerifiedAt().IsZero())
}

func (s *AccountRepoSuite) TestUpdate_PersistableErrorIsCommitted() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	err := s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
		return acc.RedeemCode("000000", time.Now())
	})
	s.ErrorIs(err, account.ErrCodeMismatch)
	s.True(errorx.IsPersistable(err))

	got, err := s.repo.GetAccountByUsername(ctx, builders.DefaultUsername)
	s.Require().NoError(err)
	s.Equal(1, got.VerificationCode().Attempts())
}

func (s *AccountRepoSuite) TestUpdate_PlainErrorRollsBack() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	boom := errors.New("boom")
	err := s.repo.UpdateAccountByEmail(ctx, builders.DefaultEmail, func(_ context.Context, acc *account.Account) error {
		_, _ = acc.IssueCode(time.Now())
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.repo.GetAccountByEmail(ctx, builders.DefaultEmail)
	s.Require().NoError(err)
	s.Equal(builders.DefaultCode, got.VerificationCode().Value())
}

func (s *AccountRepoSuite) TestUpdate_NotFound() {
	err := s.repo.UpdateAccountByEmail(s.T().Context(), "nobody@example.com", func(context.Context, *account.Account) error {
		s.Fail("update function must not run")
		return nil
	})
	s.ErrorIs(err, account.ErrNotFound)
}

func (s *AccountRepoSuite) TestUpdate_ConcurrentRedeemVerifiesOnce() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
				return acc.RedeemCode(builders.DefaultCode, time.Now())
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
}

func (s *AccountRepoSuite) TestUpdate_ConcurrentResendAndRedeem() {
	ctx := s.T().Context()
	issuedAt := time.Now().Add(-2 * time.Minute)
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().WithCodeIssuedAt(issuedAt).Build()))

	var (
		wg        sync.WaitGroup
		redeemErr error
		resendErr error
		newCode   string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		redeemErr = s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
			return acc.RedeemCode(builders.DefaultCode, time.Now())
		})
	}()
	go func() {
		defer wg.Done()
		resendErr = s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
			code, err := acc.ResendCode(time.Now())
			newCode = code.Value()
			return err
		})
	}()
	wg.Wait()

	got, err := s.repo.GetAccountByUsername(ctx, builders.DefaultUsername)
	s.Require().NoError(err)

	if redeemErr == nil {
		s.ErrorIs(resendErr, account.ErrAlreadyVerified)
		s.Equal(account.Verified, got.CodeState(time.Now()))
		return
	}
	s.ErrorIs(redeemErr, account.ErrCodeMismatch)
	s.Require().NoError(resendErr)
	s.False(got.IsVerified())
	s.Equal(newCode, got.VerificationCode().Value())
	s.Equal(account.CodeActive, got.CodeState(time.Now()))
}

func TestAccountRepo_UnavailableGateway(t *testing.T) {
	t.Parallel()

	gw := gateway.New(pgpkg.GatewayName,
		func(context.Context) (*pgxpool.Pool, error) { return nil, errors.New("connection refused") },
		nil,
	)
	repo := postgres.NewAccountRepo(gw, nil, nil)

	_, err := repo.GetAccountByEmail(t.Context(), builders.DefaultEmail)
	require.Error(t, err)
	assert.True(t, errorx.IsServiceUnavailable(err))

	err = repo.SaveAccount(t.Context(), builders.NewAccountBuilder().Build())
	assert.True(t, errorx.IsServiceUnavailable(err))
}
