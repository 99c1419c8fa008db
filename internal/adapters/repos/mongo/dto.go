package mongo

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
)

// AccountDocument is the stored shape of an account. Version grows by one on
// every successful update and guards the compare-and-swap.
type AccountDocument struct {
	ID            string     `bson:"_id"`
	Username      string     `bson:"username"`
	Email         string     `bson:"email"`
	PassHash      []byte     `bson:"pass_hash"`
	Verified      bool       `bson:"verified"`
	VerifiedAt    *time.Time `bson:"verified_at,omitempty"`
	Code          string     `bson:"verification_code"`
	CodeIssuedAt  *time.Time `bson:"code_issued_at,omitempty"`
	CodeExpiresAt *time.Time `bson:"code_expires_at,omitempty"`
	CodeConsumed  bool       `bson:"code_consumed"`
	CodeAttempts  int        `bson:"code_attempts"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
	Version       int64      `bson:"version"`
}

func DomainToAccountDocument(a *account.Account, version int64) AccountDocument {
	code := a.VerificationCode()
	return AccountDocument{
		ID:            a.ID().String(),
		Username:      a.Username(),
		Email:         a.Email(),
		PassHash:      a.PassHash(),
		Verified:      a.IsVerified(),
		VerifiedAt:    nullableTime(a.VerifiedAt()),
		Code:          code.Value(),
		CodeIssuedAt:  nullableTime(code.IssuedAt()),
		CodeExpiresAt: nullableTime(code.ExpiresAt()),
		CodeConsumed:  code.Consumed(),
		CodeAttempts:  code.Attempts(),
		CreatedAt:     a.CreatedAt(),
		UpdatedAt:     a.UpdatedAt(),
		Version:       version,
	}
}

func AccountDocumentToDomain(doc AccountDocument) (*account.Account, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}

	return account.Rehydrate(account.RehydrateArgs{
		ID:         id,
		Username:   doc.Username,
		Email:      doc.Email,
		PassHash:   doc.PassHash,
		Verified:   doc.Verified,
		VerifiedAt: valueTime(doc.VerifiedAt),
		Code: account.RehydrateCode(account.RehydrateCodeArgs{
			Value:     doc.Code,
			IssuedAt:  valueTime(doc.CodeIssuedAt),
			ExpiresAt: valueTime(doc.CodeExpiresAt),
			Consumed:  doc.CodeConsumed,
			Attempts:  doc.CodeAttempts,
		}),
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}), nil
}

// setFields lists everything an update may change; _id and version are left out.
func (doc AccountDocument) setFields() bson.M {
	fields := bson.M{
		"username":          doc.Username,
		"email":             doc.Email,
		"pass_hash":         doc.PassHash,
		"verified":          doc.Verified,
		"verified_at":       doc.VerifiedAt,
		"verification_code": doc.Code,
		"code_issued_at":    doc.CodeIssuedAt,
		"code_expires_at":   doc.CodeExpiresAt,
		"code_consumed":     doc.CodeConsumed,
		"code_attempts":     doc.CodeAttempts,
		"updated_at":        doc.UpdatedAt,
	}
	return fields
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func valueTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
