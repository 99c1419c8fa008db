package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/validationx"
	"gitlab.com/insightbox/insightbox-backend/tests/builders"
	"gitlab.com/insightbox/insightbox-backend/tests/mocks"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) func() time.Time {
	return func() time.Time { return t0.Add(offset) }
}

type SignUpSuite struct {
	Handler *SignUpHandler
	Repo    *mocks.AccountRepo
	Sender  *mocks.MockMailSender
}

func NewSignUpSuite() *SignUpSuite {
	repo := mocks.NewAccountRepo()
	sender := mocks.NewMockMailSender()

	return &SignUpSuite{
		Handler: NewSignUpHandler(SignUpHandlerArgs{
			Repo:       repo,
			Dispatcher: mail.NewDispatcher(sender, mail.Config{}),
			Now:        at(0),
		}),
		Repo:   repo,
		Sender: sender,
	}
}

func validSignUp() SignUp {
	return SignUp{Username: "alice", Email: "alice@x.io", Password: "s3cretpass"}
}

func TestSignUpHandler_HappyPath(t *testing.T) {
	t.Parallel()

	s := NewSignUpSuite()

	err := s.Handler.Handle(t.Context(), validSignUp())
	require.NoError(t, err)

	acc := s.Repo.Account(t, "alice@x.io")
	account.NewAccountAssertion(acc).
		AssertUsername(t, "alice").
		AssertNotVerified(t).
		AssertCodeState(t, t0, account.CodeActive).
		AssertCodeAttempts(t, 0).
		AssertCodeExpiresAt(t, t0.Add(10*time.Minute))
	assert.Regexp(t, `^\d{6}$`, acc.VerificationCode().Value())

	s.Repo.AssertEventCount(t, 2)
	issued := mocks.RequireEventExists(t, s.Repo.EventRepo, &account.VerificationCodeIssued{})
	assert.Equal(t, acc.ID(), issued.AccountID)

	sent, ok := s.Sender.LastMailTo("alice@x.io")
	require.True(t, ok)
	assert.Equal(t, mail.VerificationSubject, sent.Subject)
	assert.Contains(t, sent.HTML, acc.VerificationCode().Value())
}

func TestSignUpHandler_NormalizesEmail(t *testing.T) {
	t.Parallel()

	s := NewSignUpSuite()
	cmd := validSignUp()
	cmd.Email = "  Alice@X.IO "

	require.NoError(t, s.Handler.Handle(t.Context(), cmd))

	s.Repo.AssertAccountExistsByEmail(t, "alice@x.io")
	s.Sender.AssertMailSent(t, "alice@x.io", mail.VerificationSubject)
}

func TestSignUpHandler_InvalidInput_ListsEveryField(t *testing.T) {
	t.Parallel()

	s := NewSignUpSuite()

	err := s.Handler.Handle(t.Context(), SignUp{Username: "a!", Email: "nope", Password: "123"})

	validationx.AssertValidationErrors(t, err, map[string]string{
		"username": "validation_length_out_of_range",
		"email":    "validation_is_email",
		"password": "validation_length_out_of_range",
	})
	s.Repo.AssertAccountCount(t, 0)
	s.Sender.AssertNoMailSent(t)
}

func TestSignUpHandler_Conflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    *account.Account
		cmd     SignUp
		wantErr error
	}{
		{
			name:    "username of verified account",
			seed:    builders.NewAccountBuilder().WithUsername("alice").WithEmail("other@x.io").Verified().Build(),
			cmd:     validSignUp(),
			wantErr: account.ErrUsernameTaken,
		},
		{
			name:    "username of unverified account with another email",
			seed:    builders.NewAccountBuilder().WithUsername("alice").WithEmail("other@x.io").Build(),
			cmd:     validSignUp(),
			wantErr: account.ErrUsernameTaken,
		},
		{
			name:    "email of verified account",
			seed:    builders.NewAccountBuilder().WithUsername("bob").WithEmail("alice@x.io").Verified().Build(),
			cmd:     validSignUp(),
			wantErr: account.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewSignUpSuite()
			s.Repo.SeedAccount(t, tt.seed)

			err := s.Handler.Handle(t.Context(), tt.cmd)

			require.ErrorIs(t, err, tt.wantErr)
			s.Repo.AssertAccountCount(t, 1)
			s.Repo.AssertEventCount(t, 0)
			s.Sender.AssertNoMailSent(t)
		})
	}
}

func TestSignUpHandler_RepeatedSignUpResetsUnverifiedAccount(t *testing.T) {
	t.Parallel()

	s := NewSignUpSuite()
	seed := builders.NewAccountBuilder().
		WithUsername("alice").
		WithEmail("alice@x.io").
		WithPassword("oldpassword").
		WithCode("111111").
		WithCodeIssuedAt(t0.Add(-time.Hour)).
		Build()
	s.Repo.SeedAccount(t, seed)

	err := s.Handler.Handle(t.Context(), SignUp{Username: "alice2", Email: "alice@x.io", Password: "newpassword"})
	require.NoError(t, err)

	acc := s.Repo.Account(t, "alice@x.io")
	account.NewAccountAssertion(acc).
		AssertUsername(t, "alice2").
		AssertPassword(t, "newpassword").
		AssertCodeState(t, t0, account.CodeActive).
		AssertCodeExpiresAt(t, t0.Add(10*time.Minute))
	assert.Equal(t, seed.ID(), acc.ID())

	sent, ok := s.Sender.LastMailTo("alice@x.io")
	require.True(t, ok)
	assert.Contains(t, sent.HTML, acc.VerificationCode().Value())
}

func TestSignUpHandler_DispatchFailureLeavesCodeStanding(t *testing.T) {
	t.Parallel()

	s := NewSignUpSuite()
	s.Sender.Fail(errors.New("transport down"))

	err := s.Handler.Handle(t.Context(), validSignUp())

	require.ErrorIs(t, err, ErrVerificationEmailFailed)
	assert.True(t, errorx.IsCode(err, errorx.CodeVerificationEmailFailed))
	s.Repo.AssertAccountExistsByEmail(t, "alice@x.io").
		AssertNotVerified(t).
		AssertCodeState(t, t0, account.CodeActive)
}

func TestSignUpHandler_PersistenceUnavailable(t *testing.T) {
	t.Parallel()

	s := NewSignUpSuite()
	s.Repo.Unavailable()

	err := s.Handler.Handle(t.Context(), validSignUp())

	require.Error(t, err)
	assert.True(t, errorx.IsServiceUnavailable(err))
	s.Sender.AssertNoMailSent(t)
}
