package account

import (
	"crypto/subtle"
	"time"
)

const (
	CodeLength      = 6
	CodeTTL         = 10 * time.Minute
	ResendCooldown  = 1 * time.Minute
	MaxCodeAttempts = 5
)

type CodeState string

const (
	NoCodeIssued CodeState = "no_code_issued"
	CodeActive   CodeState = "code_active"
	CodeExpired  CodeState = "code_expired"
	CodeConsumed CodeState = "code_consumed"
	Verified     CodeState = "verified"
)

func (s CodeState) String() string {
	return string(s)
}

// VerificationCode is the one-time code currently issued to an account. An account
// holds at most one, so issuing a new code supersedes the previous one.
type VerificationCode struct {
	value     string
	issuedAt  time.Time
	expiresAt time.Time
	consumed  bool
	attempts  int
}

func newVerificationCode(value string, now time.Time) VerificationCode {
	now = now.UTC()
	return VerificationCode{
		value:     value,
		issuedAt:  now,
		expiresAt: now.Add(CodeTTL),
	}
}

type RehydrateCodeArgs struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
	Attempts  int
}

func RehydrateCode(args RehydrateCodeArgs) VerificationCode {
	return VerificationCode{
		value:     args.Value,
		issuedAt:  args.IssuedAt,
		expiresAt: args.ExpiresAt,
		consumed:  args.Consumed,
		attempts:  args.Attempts,
	}
}

func (c VerificationCode) Value() string        { return c.value }
func (c VerificationCode) IssuedAt() time.Time  { return c.issuedAt }
func (c VerificationCode) ExpiresAt() time.Time { return c.expiresAt }
func (c VerificationCode) Consumed() bool       { return c.consumed }
func (c VerificationCode) Attempts() int        { return c.attempts }

func (c VerificationCode) Issued() bool {
	return c.value != ""
}

// Expired is true strictly after expiresAt; a code redeemed exactly at expiresAt is still valid.
func (c VerificationCode) Expired(now time.Time) bool {
	return now.After(c.expiresAt)
}

// Matches compares in constant time.
func (c VerificationCode) Matches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(c.value), []byte(candidate)) == 1
}

// RetryAfter returns how long a resend must wait, or zero when it is allowed now.
func (c VerificationCode) RetryAfter(now time.Time) time.Duration {
	if !c.Issued() {
		return 0
	}
	wait := c.issuedAt.Add(ResendCooldown).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
