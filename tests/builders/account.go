package builders

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
)

const (
	DefaultUsername = "alice"
	DefaultEmail    = "alice@example.com"
	DefaultPassword = "s3cretpass"
	DefaultCode     = "482913"
)

// AccountBuilder builds accounts in any lifecycle state. The default is an
// unverified account holding DefaultCode issued just now.
type AccountBuilder struct {
	id         uuid.UUID
	username   string
	email      string
	password   string
	verified   bool
	verifiedAt time.Time
	code       account.RehydrateCodeArgs
	createdAt  time.Time
	updatedAt  time.Time
}

func NewAccountBuilder() *AccountBuilder {
	now := time.Now().UTC()

	return &AccountBuilder{
		id:       uuid.New(),
		username: DefaultUsername,
		email:    DefaultEmail,
		password: DefaultPassword,
		code: account.RehydrateCodeArgs{
			Value:     DefaultCode,
			IssuedAt:  now,
			ExpiresAt: now.Add(account.CodeTTL),
		},
		createdAt: now,
		updatedAt: now,
	}
}

func (b *AccountBuilder) WithID(id uuid.UUID) *AccountBuilder {
	b.id = id
	return b
}

func (b *AccountBuilder) WithUsername(username string) *AccountBuilder {
	b.username = username
	return b
}

func (b *AccountBuilder) WithEmail(email string) *AccountBuilder {
	b.email = email
	return b
}

func (b *AccountBuilder) WithPassword(password string) *AccountBuilder {
	b.password = password
	return b
}

func (b *AccountBuilder) WithCode(value string) *AccountBuilder {
	b.code.Value = value
	return b
}

// WithCodeIssuedAt moves the whole code window, keeping the ten minute lifetime.
func (b *AccountBuilder) WithCodeIssuedAt(issuedAt time.Time) *AccountBuilder {
	b.code.IssuedAt = issuedAt.UTC()
	b.code.ExpiresAt = issuedAt.UTC().Add(account.CodeTTL)
	return b
}

func (b *AccountBuilder) WithExpiredCode() *AccountBuilder {
	return b.WithCodeIssuedAt(time.Now().Add(-account.CodeTTL - time.Minute))
}

func (b *AccountBuilder) WithCodeAttempts(attempts int) *AccountBuilder {
	b.code.Attempts = attempts
	return b
}

func (b *AccountBuilder) WithConsumedCode() *AccountBuilder {
	b.code.Consumed = true
	return b
}

func (b *AccountBuilder) WithoutCode() *AccountBuilder {
	b.code = account.RehydrateCodeArgs{}
	return b
}

func (b *AccountBuilder) Verified() *AccountBuilder {
	b.verified = true
	b.verifiedAt = time.Now().UTC()
	b.code.Consumed = true
	return b
}

func (b *AccountBuilder) Build() *account.Account {
	// MinCost keeps tests fast; Authenticate works with any bcrypt cost.
	hash, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	var code account.VerificationCode
	if b.code.Value != "" {
		code = account.RehydrateCode(b.code)
	}

	return account.Rehydrate(account.RehydrateArgs{
		ID:         b.id,
		Username:   b.username,
		Email:      b.email,
		PassHash:   hash,
		Verified:   b.verified,
		VerifiedAt: b.verifiedAt,
		Code:       code,
		CreatedAt:  b.createdAt,
		UpdatedAt:  b.updatedAt,
	})
}
