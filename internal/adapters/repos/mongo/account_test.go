package mongo_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"gitlab.com/insightbox/insightbox-backend/internal/adapters/repos/mongo"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
	"gitlab.com/insightbox/insightbox-backend/pkg/mongox"
	"gitlab.com/insightbox/insightbox-backend/pkg/watermillx"
	"gitlab.com/insightbox/insightbox-backend/tests/builders"
)

type AccountRepoSuite struct {
	suite.Suite
	container *tcmongo.MongoDBContainer
	db        *mongodriver.Database
	repo      *mongo.AccountRepo
	messages  <-chan *message.Message
}

func TestAccountRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}
	suite.Run(t, new(AccountRepoSuite))
}

func (s *AccountRepoSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	s.db, err = mongox.Connect(ctx, uri, "insightbox_test")
	s.Require().NoError(err)

	wlogger := watermillx.NewSlogAdapter(slog.New(slog.DiscardHandler), slog.LevelDebug)
	pubsub := watermillx.NewGoChannel(wlogger)
	s.messages, err = pubsub.Subscribe(ctx, account.EventStreamName)
	s.Require().NoError(err)

	bus, err := watermillx.NewEventBus(pubsub, wlogger)
	s.Require().NoError(err)

	s.repo = mongo.NewAccountRepo(mongo.AccountRepoArgs{
		Gateway:  gateway.Connected(mongox.GatewayName, s.db, nil),
		EventBus: bus,
	})
}

func (s *AccountRepoSuite) TearDownSuite() {
	ctx := context.Background()
	if s.db != nil {
		_ = s.db.Client().Disconnect(ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(ctx))
	}
}

func (s *AccountRepoSuite) SetupTest() {
	_, err := s.db.Collection(mongox.AccountsCollection).DeleteMany(context.Background(), bson.M{})
	s.Require().NoError(err)
	s.drain()
}

func (s *AccountRepoSuite) drain() {
	for {
		select {
		case msg := <-s.messages:
			msg.Ack()
		default:
			return
		}
	}
}

func (s *AccountRepoSuite) requireMessage() *message.Message {
	select {
	case msg := <-s.messages:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		s.FailNow("no event published")
		return nil
	}
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
		s.Equal(builders.DefaultCode, got.VerificationCode().Value())
		s.WithinDuration(acc.VerificationCode().ExpiresAt(), got.VerificationCode().ExpiresAt(), time.Millisecond)
		s.True(got.VerifiedAt().IsZero())
	}
}

func (s *AccountRepoSuite) TestSaveAccount_Conflicts() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	err := s.repo.SaveAccount(ctx, builders.NewAccountBuilder().WithEmail("other@example.com").Build())
	s.ErrorIs(err, account.ErrUsernameTaken)

	err = s.repo.SaveAccount(ctx, builders.NewAccountBuilder().WithUsername("bob").Build())
	s.ErrorIs(err, account.ErrEmailTaken)
}

func (s *AccountRepoSuite) TestGetAccount_NotFound() {
	_, err := s.repo.GetAccountByUsername(s.T().Context(), "nobody")
	s.ErrorIs(err, account.ErrNotFound)
}

func (s *AccountRepoSuite) TestIsUsernameTaken() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().
		WithUsername("bob").WithEmail("bob@example.com").Verified().Build()))

	taken, err := s.repo.IsUsernameTaken(ctx, builders.DefaultUsername)
	s.Require().NoError(err)
	s.False(taken)

	taken, err = s.repo.IsUsernameTaken(ctx, "bob")
	s.Require().NoError(err)
	s.True(taken)
}

func (s *AccountRepoSuite) TestUpdate_PublishesVerifiedEvent() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	err := s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
		return acc.RedeemCode(builders.DefaultCode, time.Now())
	})
	s.Require().NoError(err)

	msg := s.requireMessage()
	s.Contains(string(msg.Payload), builders.DefaultUsername)

	got, err := s.repo.GetAccountByUsername(ctx, builders.DefaultUsername)
	s.Require().NoError(err)
	s.True(got.IsVerified())
}

func (s *AccountRepoSuite) TestUpdate_PersistableErrorIsStored() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	err := s.repo.UpdateAccountByEmail(ctx, builders.DefaultEmail, func(_ context.Context, acc *account.Account) error {
		return acc.RedeemCode("000000", time.Now())
	})
	s.ErrorIs(err, account.ErrCodeMismatch)

	got, err := s.repo.GetAccountByEmail(ctx, builders.DefaultEmail)
	s.Require().NoError(err)
	s.Equal(1, got.VerificationCode().Attempts())
}

func (s *AccountRepoSuite) TestUpdate_PlainErrorIsNotStored() {
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

func (s *AccountRepoSuite) TestUpdate_ConcurrentGuessesAreAllCounted() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	const workers = 3
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.repo.UpdateAccountByUsername(ctx, builders.DefaultUsername, func(_ context.Context, acc *account.Account) error {
				return acc.RedeemCode("000000", time.Now())
			})
		}()
	}
	wg.Wait()

	got, err := s.repo.GetAccountByUsername(ctx, builders.DefaultUsername)
	s.Require().NoError(err)
	s.Equal(workers, got.VerificationCode().Attempts())
}

func (s *AccountRepoSuite) TestUpdate_ConcurrentRedeemVerifiesOnce() {
	ctx := s.T().Context()
	s.Require().NoError(s.repo.SaveAccount(ctx, builders.NewAccountBuilder().Build()))

	const workers = 4
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

	gw := gateway.New(mongox.GatewayName,
		func(context.Context) (*mongodriver.Database, error) { return nil, errors.New("no reachable servers") },
		nil,
	)
	repo := mongo.NewAccountRepo(mongo.AccountRepoArgs{Gateway: gw})

	_, err := repo.GetAccountByUsername(t.Context(), builders.DefaultUsername)
	require.Error(t, err)
	assert.True(t, errorx.IsServiceUnavailable(err))

	err = repo.UpdateAccountByEmail(t.Context(), builders.DefaultEmail, func(context.Context, *account.Account) error { return nil })
	assert.True(t, errorx.IsServiceUnavailable(err))
}
