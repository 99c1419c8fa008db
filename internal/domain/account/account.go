package account

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/event"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/i18nx"
	"gitlab.com/insightbox/insightbox-backend/pkg/randcode"
)

const PasswordCostFactor = 12

type Account struct {
	event.Recorder
	id         uuid.UUID
	username   string
	email      string
	passHash   []byte
	verified   bool
	verifiedAt time.Time
	code       VerificationCode
	createdAt  time.Time
	updatedAt  time.Time
}

// NewAccount validates creds and creates an unverified account without a code.
func NewAccount(creds Credentials, now time.Time) (*Account, error) {
	const op = "account.NewAccount"

	creds = creds.Normalized()
	if err := creds.Validate(); err != nil {
		return nil, errorx.Wrap(err, op)
	}

	passHash, err := hashPassword(creds.Password)
	if err != nil {
		return nil, errorx.Wrap(err, op)
	}

	now = now.UTC()
	acc := &Account{
		id:        uuid.New(),
		username:  creds.Username,
		email:     creds.Email,
		passHash:  passHash,
		createdAt: now,
		updatedAt: now,
	}

	acc.AddEvent(&AccountRegistered{
		Header:    event.NewEventHeaderAt(now),
		AccountID: acc.id,
		Username:  acc.username,
		Email:     acc.email,
	})

	return acc, nil
}

type RehydrateArgs struct {
	ID         uuid.UUID
	Username   string
	Email      string
	PassHash   []byte
	Verified   bool
	VerifiedAt time.Time
	Code       VerificationCode
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func Rehydrate(args RehydrateArgs) *Account {
	return &Account{
		id:         args.ID,
		username:   args.Username,
		email:      args.Email,
		passHash:   args.PassHash,
		verified:   args.Verified,
		verifiedAt: args.VerifiedAt,
		code:       args.Code,
		createdAt:  args.CreatedAt,
		updatedAt:  args.UpdatedAt,
	}
}

// Reset handles a repeated sign-up for an email that was never verified: the
// username and password are replaced and a fresh code is issued.
func (a *Account) Reset(creds Credentials, now time.Time) (VerificationCode, error) {
	const op = "account.Account.Reset"

	if a.verified {
		return VerificationCode{}, errorx.Wrap(ErrEmailTaken, op)
	}

	creds = creds.Normalized()
	if err := creds.Validate(); err != nil {
		return VerificationCode{}, errorx.Wrap(err, op)
	}

	passHash, err := hashPassword(creds.Password)
	if err != nil {
		return VerificationCode{}, errorx.Wrap(err, op)
	}

	a.username = creds.Username
	a.passHash = passHash

	code, err := a.IssueCode(now)
	if err != nil {
		return VerificationCode{}, errorx.Wrap(err, op)
	}
	return code, nil
}

// IssueCode generates a new code that supersedes any previous one.
func (a *Account) IssueCode(now time.Time) (VerificationCode, error) {
	const op = "account.Account.IssueCode"

	value, err := randcode.GenerateNumericCode(CodeLength)
	if err != nil {
		return VerificationCode{}, errorx.Wrap(err, op)
	}

	code, err := a.issueCode(value, now)
	if err != nil {
		return VerificationCode{}, errorx.Wrap(err, op)
	}
	return code, nil
}

func (a *Account) issueCode(value string, now time.Time) (VerificationCode, error) {
	if a.verified {
		return VerificationCode{}, ErrAlreadyVerified
	}

	a.code = newVerificationCode(value, now)
	a.updatedAt = now.UTC()

	a.AddEvent(&VerificationCodeIssued{
		Header:    event.NewEventHeaderAt(now),
		AccountID: a.id,
		Username:  a.username,
		Email:     a.email,
		ExpiresAt: a.code.expiresAt,
	})

	return a.code, nil
}

// ResendCode issues a new code unless the current one was issued less than
// ResendCooldown ago.
func (a *Account) ResendCode(now time.Time) (VerificationCode, error) {
	const op = "account.Account.ResendCode"

	if a.verified {
		return VerificationCode{}, errorx.Wrap(ErrAlreadyVerified, op)
	}

	if wait := a.code.RetryAfter(now); wait > 0 {
		seconds := int(math.Ceil(wait.Seconds()))
		return VerificationCode{}, errorx.Wrap(
			ErrResendCooldown.WithArgs(map[string]any{i18nx.ArgRetryAfter: seconds}),
			op,
		)
	}

	return a.IssueCode(now)
}

func (a *Account) CodeState(now time.Time) CodeState {
	switch {
	case a.verified:
		return Verified
	case !a.code.Issued():
		return NoCodeIssued
	case a.code.consumed:
		return CodeConsumed
	case a.code.Expired(now):
		return CodeExpired
	default:
		return CodeActive
	}
}

// RedeemCode verifies the account when candidate matches the active code.
//
// Expiry is checked before the comparison, so an expired code fails with
// ErrCodeExpired even when it matches. A consumed or missing code always fails
// with ErrCodeMismatch. Wrong guesses count towards MaxCodeAttempts; the last
// allowed guess burns the code. Those failures are persistable.
func (a *Account) RedeemCode(candidate string, now time.Time) error {
	const op = "account.Account.RedeemCode"

	if !a.code.Issued() || a.code.consumed {
		return errorx.Wrap(ErrCodeMismatch, op)
	}

	if a.code.Expired(now) {
		return errorx.Wrap(ErrCodeExpired, op)
	}

	now = now.UTC()
	if !a.code.Matches(candidate) {
		a.code.attempts++
		a.updatedAt = now
		if a.code.attempts >= MaxCodeAttempts {
			a.code.consumed = true
			return errorx.Wrap(ErrPersistentTooManyAttempts, op)
		}
		return errorx.Wrap(ErrPersistentCodeMismatch, op)
	}

	a.code.consumed = true
	a.verified = true
	a.verifiedAt = now
	a.updatedAt = now

	a.AddEvent(&AccountVerified{
		Header:     event.NewEventHeaderAt(now),
		AccountID:  a.id,
		Username:   a.username,
		Email:      a.email,
		VerifiedAt: now,
	})

	return nil
}

// Authenticate checks the password and requires a verified account.
func (a *Account) Authenticate(password string) error {
	const op = "account.Account.Authenticate"

	err := bcryptCompare(a.passHash, password)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errorx.Wrap(ErrWrongCredentials, op)
	}
	if err != nil {
		return errorx.Wrap(err, op)
	}

	if !a.verified {
		return errorx.Wrap(ErrNotVerified, op)
	}
	return nil
}

// bcryptMaxInput is the number of bytes bcrypt reads; anything after it is ignored.
const bcryptMaxInput = 72

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(bcryptInput(password), PasswordCostFactor)
}

func bcryptCompare(hash []byte, password string) error {
	return bcrypt.CompareHashAndPassword(hash, bcryptInput(password))
}

// bcryptInput passes short passwords through and replaces longer ones with their
// base64 SHA-256 digest, so every byte of a long passphrase counts.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

func (a *Account) ID() uuid.UUID {
	if a == nil {
		return uuid.Nil
	}
	return a.id
}

func (a *Account) Username() string {
	if a == nil {
		return ""
	}
	return a.username
}

func (a *Account) Email() string {
	if a == nil {
		return ""
	}
	return a.email
}

func (a *Account) PassHash() []byte {
	if a == nil {
		return nil
	}
	return a.passHash
}

func (a *Account) IsVerified() bool {
	return a != nil && a.verified
}

func (a *Account) VerifiedAt() time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.verifiedAt
}

func (a *Account) VerificationCode() VerificationCode {
	if a == nil {
		return VerificationCode{}
	}
	return a.code
}

func (a *Account) CreatedAt() time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.createdAt
}

func (a *Account) UpdatedAt() time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.updatedAt
}
