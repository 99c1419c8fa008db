package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/event"
)

type AccountAssertion struct {
	Account *Account
}

func NewAccountAssertion(acc *Account) *AccountAssertion {
	return &AccountAssertion{Account: acc}
}

func (aa *AccountAssertion) AssertUsername(t *testing.T, expected string) *AccountAssertion {
	t.Helper()
	assert.Equal(t, expected, aa.Account.username, "Expected username to be %s, got %s", expected, aa.Account.username)
	return aa
}

func (aa *AccountAssertion) AssertEmail(t *testing.T, expected string) *AccountAssertion {
	t.Helper()
	assert.Equal(t, expected, aa.Account.email, "Expected email to be %s, got %s", expected, aa.Account.email)
	return aa
}

func (aa *AccountAssertion) AssertPassword(t *testing.T, password string) *AccountAssertion {
	t.Helper()
	assert.NoError(t, bcryptCompare(aa.Account.passHash, password), "Expected password hash to match")
	return aa
}

func (aa *AccountAssertion) AssertVerified(t *testing.T) *AccountAssertion {
	t.Helper()
	assert.True(t, aa.Account.verified, "Expected account to be verified")
	assert.False(t, aa.Account.verifiedAt.IsZero(), "Expected verifiedAt to be set")
	return aa
}

func (aa *AccountAssertion) AssertNotVerified(t *testing.T) *AccountAssertion {
	t.Helper()
	assert.False(t, aa.Account.verified, "Expected account not to be verified")
	assert.True(t, aa.Account.verifiedAt.IsZero(), "Expected verifiedAt to be zero")
	return aa
}

func (aa *AccountAssertion) AssertCodeState(t *testing.T, now time.Time, expected CodeState) *AccountAssertion {
	t.Helper()
	got := aa.Account.CodeState(now)
	assert.Equal(t, expected, got, "Expected code state to be %s, got %s", expected, got)
	return aa
}

func (aa *AccountAssertion) AssertCode(t *testing.T, expected string) *AccountAssertion {
	t.Helper()
	assert.Equal(t, expected, aa.Account.code.value, "Expected verification code to be %s, got %s", expected, aa.Account.code.value)
	return aa
}

func (aa *AccountAssertion) AssertCodeIsNot(t *testing.T, unexpected string) *AccountAssertion {
	t.Helper()
	assert.NotEqual(t, unexpected, aa.Account.code.value, "Expected verification code to change")
	return aa
}

func (aa *AccountAssertion) AssertCodeAttempts(t *testing.T, expected int) *AccountAssertion {
	t.Helper()
	assert.Equal(t, expected, aa.Account.code.attempts, "Expected code attempts to be %d, got %d", expected, aa.Account.code.attempts)
	return aa
}

func (aa *AccountAssertion) AssertCodeExpiresAt(t *testing.T, expected time.Time) *AccountAssertion {
	t.Helper()
	assert.WithinDuration(t, expected, aa.Account.code.expiresAt, time.Second)
	return aa
}

func (aa *AccountAssertion) AssertEventCount(t *testing.T, expected int) *AccountAssertion {
	t.Helper()
	assert.Len(t, aa.Account.GetUncommittedEvents(), expected)
	return aa
}

// AssertLastEvent checks the type of the most recent uncommitted event and returns it.
func AssertLastEvent[T event.Event](t *testing.T, acc *Account) T {
	t.Helper()
	events := acc.GetUncommittedEvents()
	require.NotEmpty(t, events, "Expected at least one uncommitted event")

	e, ok := events[len(events)-1].(T)
	require.True(t, ok, "Expected last event to be %T, got %T", *new(T), events[len(events)-1])
	return e
}
