package account

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ARUMANDESU/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/i18nx"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func newUnverified(t *testing.T) *Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	return Rehydrate(RehydrateArgs{
		ID:        uuid.New(),
		Username:  "john42",
		Email:     "john@example.com",
		PassHash:  hash,
		CreatedAt: t0,
		UpdatedAt: t0,
	})
}

func issued(t *testing.T, value string, now time.Time) *Account {
	t.Helper()
	acc := newUnverified(t)
	_, err := acc.issueCode(value, now)
	require.NoError(t, err)
	return acc
}

func TestRedeemCode_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("redeem within expiry then replay", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))

		require.NoError(t, acc.RedeemCode("482913", at(300)))
		NewAccountAssertion(acc).
			AssertVerified(t).
			AssertCodeState(t, at(300), Verified)

		err := acc.RedeemCode("482913", at(301))
		assert.ErrorIs(t, err, ErrCodeMismatch)
		assert.False(t, errorx.IsPersistable(err))
	})

	t.Run("correct code after expiry", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))

		err := acc.RedeemCode("482913", at(601))
		assert.ErrorIs(t, err, ErrCodeExpired)
		NewAccountAssertion(acc).
			AssertNotVerified(t).
			AssertCodeAttempts(t, 0).
			AssertCodeState(t, at(601), CodeExpired)
	})

	t.Run("expiry boundary is inclusive", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))

		require.NoError(t, acc.RedeemCode("482913", at(600)))
		NewAccountAssertion(acc).AssertVerified(t)
	})

	t.Run("wrong code after expiry reports expiry", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))

		err := acc.RedeemCode("000000", at(700))
		assert.ErrorIs(t, err, ErrCodeExpired)
		NewAccountAssertion(acc).AssertCodeAttempts(t, 0)
	})

	t.Run("no code issued", func(t *testing.T) {
		t.Parallel()
		acc := newUnverified(t)

		assert.ErrorIs(t, acc.RedeemCode("482913", at(1)), ErrCodeMismatch)
		NewAccountAssertion(acc).AssertCodeState(t, at(1), NoCodeIssued)
	})

	t.Run("empty candidate never matches", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))

		assert.ErrorIs(t, acc.RedeemCode("", at(1)), ErrCodeMismatch)
	})
}

func TestRedeemCode_SupersededCode(t *testing.T) {
	t.Parallel()

	acc := issued(t, "111111", at(0))
	_, err := acc.issueCode("222222", at(90))
	require.NoError(t, err)

	err = acc.RedeemCode("111111", at(100))
	assert.ErrorIs(t, err, ErrCodeMismatch)

	require.NoError(t, acc.RedeemCode("222222", at(101)))
	NewAccountAssertion(acc).AssertVerified(t)
}

func TestRedeemCode_SupersededCodeKeepsExpiryOfNewCode(t *testing.T) {
	t.Parallel()

	acc := issued(t, "111111", at(0))
	_, err := acc.issueCode("222222", at(500))
	require.NoError(t, err)

	NewAccountAssertion(acc).AssertCodeExpiresAt(t, at(1100))
	require.NoError(t, acc.RedeemCode("222222", at(1000)))
}

func TestRedeemCode_AttemptLimit(t *testing.T) {
	t.Parallel()

	acc := issued(t, "482913", at(0))

	for i := 1; i < MaxCodeAttempts; i++ {
		err := acc.RedeemCode("000000", at(i))
		assert.ErrorIs(t, err, ErrCodeMismatch)
		assert.True(t, errorx.IsPersistable(err), "attempt %d must be persisted", i)
		NewAccountAssertion(acc).AssertCodeAttempts(t, i)
	}

	err := acc.RedeemCode("000000", at(10))
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	assert.True(t, errorx.IsPersistable(err))
	NewAccountAssertion(acc).
		AssertCodeAttempts(t, MaxCodeAttempts).
		AssertCodeState(t, at(10), CodeConsumed)

	err = acc.RedeemCode("482913", at(11))
	assert.ErrorIs(t, err, ErrCodeMismatch)
	NewAccountAssertion(acc).AssertNotVerified(t)
}

func TestRedeemCode_RecordsEvent(t *testing.T) {
	t.Parallel()

	acc := issued(t, "482913", at(0))
	acc.MarkEventsAsCommitted()

	require.NoError(t, acc.RedeemCode("482913", at(30)))

	NewAccountAssertion(acc).AssertEventCount(t, 1)
	e := AssertLastEvent[*AccountVerified](t, acc)
	assert.Equal(t, acc.ID(), e.AccountID)
	assert.Equal(t, "john42", e.Username)
	assert.True(t, e.VerifiedAt.Equal(at(30)))
}

func TestIssueCode(t *testing.T) {
	t.Parallel()

	acc := newUnverified(t)
	code, err := acc.IssueCode(at(0))
	require.NoError(t, err)

	assert.Len(t, code.Value(), CodeLength)
	assert.Regexp(t, `^[0-9]{6}$`, code.Value())
	assert.True(t, code.ExpiresAt().Equal(at(600)))
	NewAccountAssertion(acc).
		AssertCode(t, code.Value()).
		AssertCodeState(t, at(0), CodeActive).
		AssertCodeState(t, at(601), CodeExpired)

	e := AssertLastEvent[*VerificationCodeIssued](t, acc)
	assert.Equal(t, "john@example.com", e.Email)
	assert.True(t, e.ExpiresAt.Equal(at(600)))

	payload, err := json.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), `"code"`)
}

func TestIssueCode_VerifiedAccount(t *testing.T) {
	t.Parallel()

	acc := issued(t, "482913", at(0))
	require.NoError(t, acc.RedeemCode("482913", at(1)))

	_, err := acc.IssueCode(at(2))
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestResendCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		after          int
		wantErr        error
		wantRetryAfter int
	}{
		{name: "right after issue", after: 0, wantErr: ErrResendCooldown, wantRetryAfter: 60},
		{name: "half way through cooldown", after: 30, wantErr: ErrResendCooldown, wantRetryAfter: 30},
		{name: "one second left", after: 59, wantErr: ErrResendCooldown, wantRetryAfter: 1},
		{name: "cooldown elapsed", after: 60},
		{name: "long after", after: 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			acc := issued(t, "482913", at(0))

			code, err := acc.ResendCode(at(tt.after))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var i18nErr *errorx.I18nError
				require.ErrorAs(t, err, &i18nErr)
				assert.Equal(t, tt.wantRetryAfter, i18nErr.MessageArgs[i18nx.ArgRetryAfter])
				NewAccountAssertion(acc).AssertCode(t, "482913")
				return
			}

			require.NoError(t, err)
			assert.True(t, code.IssuedAt().Equal(at(tt.after)))
			NewAccountAssertion(acc).
				AssertCodeAttempts(t, 0).
				AssertCodeState(t, at(tt.after), CodeActive)
		})
	}
}

func TestResendCode_AfterBurntCode(t *testing.T) {
	t.Parallel()

	acc := issued(t, "482913", at(0))
	for i := range MaxCodeAttempts {
		_ = acc.RedeemCode("000000", at(i+1))
	}
	require.Equal(t, CodeConsumed, acc.CodeState(at(10)))

	_, err := acc.ResendCode(at(120))
	require.NoError(t, err)
	NewAccountAssertion(acc).
		AssertCodeAttempts(t, 0).
		AssertCodeState(t, at(120), CodeActive)
}

func TestResendCode_NoPreviousCode(t *testing.T) {
	t.Parallel()

	acc := newUnverified(t)
	_, err := acc.ResendCode(at(0))
	require.NoError(t, err)
}

func TestResendCode_Verified(t *testing.T) {
	t.Parallel()

	acc := issued(t, "482913", at(0))
	require.NoError(t, acc.RedeemCode("482913", at(1)))

	_, err := acc.ResendCode(at(120))
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestNewAccount(t *testing.T) {
	t.Parallel()

	acc, err := NewAccount(Credentials{
		Username: " John42 ",
		Email:    "John@Example.COM",
		Password: "secret1",
	}, at(0))
	require.NoError(t, err)

	NewAccountAssertion(acc).
		AssertUsername(t, "John42").
		AssertEmail(t, "john@example.com").
		AssertPassword(t, "secret1").
		AssertNotVerified(t).
		AssertCodeState(t, at(0), NoCodeIssued).
		AssertEventCount(t, 1)

	e := AssertLastEvent[*AccountRegistered](t, acc)
	assert.Equal(t, acc.ID(), e.AccountID)
	assert.NotEqual(t, uuid.Nil, acc.ID())
}

func TestNewAccount_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewAccount(Credentials{
		Username: "ab",
		Email:    "not-an-email",
		Password: "12345",
	}, at(0))

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.Contains(t, verrs, "username")
	assert.Contains(t, verrs, "email")
	assert.Contains(t, verrs, "password")
}

func TestReset(t *testing.T) {
	t.Parallel()

	t.Run("unverified account", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))

		code, err := acc.Reset(Credentials{Username: "john43", Email: "john@example.com", Password: "newpass"}, at(120))
		require.NoError(t, err)

		NewAccountAssertion(acc).
			AssertUsername(t, "john43").
			AssertPassword(t, "newpass").
			AssertCode(t, code.Value()).
			AssertCodeAttempts(t, 0)
		assert.ErrorIs(t, acc.RedeemCode("482913", at(121)), ErrCodeMismatch)
	})

	t.Run("verified account", func(t *testing.T) {
		t.Parallel()
		acc := issued(t, "482913", at(0))
		require.NoError(t, acc.RedeemCode("482913", at(1)))

		_, err := acc.Reset(Credentials{Username: "john42", Email: "john@example.com", Password: "newpass"}, at(120))
		assert.ErrorIs(t, err, ErrEmailTaken)
		NewAccountAssertion(acc).AssertPassword(t, "secret1")
	})
}

func TestNewAccount_LongPassword(t *testing.T) {
	t.Parallel()

	cyrillic := strings.Repeat("п", 40)
	prefix := strings.Repeat("x", 72)

	tests := []struct {
		name     string
		password string
		other    string
	}{
		{name: "multibyte passphrase", password: cyrillic, other: strings.Repeat("п", 39)},
		{name: "differs after byte 72", password: prefix + "tail-one", other: prefix + "tail-two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			acc, err := NewAccount(Credentials{Username: "john42", Email: "john@example.com", Password: tt.password}, at(0))
			require.NoError(t, err)

			NewAccountAssertion(acc).AssertPassword(t, tt.password)
			assert.Error(t, bcryptCompare(acc.PassHash(), tt.other))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	acc := issued(t, "482913", at(0))

	assert.ErrorIs(t, acc.Authenticate("wrong"), ErrWrongCredentials)
	assert.ErrorIs(t, acc.Authenticate("secret1"), ErrNotVerified)

	require.NoError(t, acc.RedeemCode("482913", at(1)))
	assert.NoError(t, acc.Authenticate("secret1"))
}
