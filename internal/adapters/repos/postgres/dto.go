package postgres

import (
	"time"

	"github.com/google/uuid"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
)

const accountColumns = `id, username, email, pass_hash, verified, verified_at,
        verification_code, code_issued_at, code_expires_at, code_consumed, code_attempts,
        created_at, updated_at`

type AccountDTO struct {
	ID               uuid.UUID
	Username         string
	Email            string
	PassHash         []byte
	Verified         bool
	VerifiedAt       *time.Time
	VerificationCode string
	CodeIssuedAt     *time.Time
	CodeExpiresAt    *time.Time
	CodeConsumed     bool
	CodeAttempts     int16
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (AccountDTO, error) {
	var dto AccountDTO
	err := row.Scan(
		&dto.ID, &dto.Username, &dto.Email, &dto.PassHash, &dto.Verified, &dto.VerifiedAt,
		&dto.VerificationCode, &dto.CodeIssuedAt, &dto.CodeExpiresAt, &dto.CodeConsumed, &dto.CodeAttempts,
		&dto.CreatedAt, &dto.UpdatedAt,
	)
	return dto, err
}

func (dto AccountDTO) args() []any {
	return []any{
		dto.ID, dto.Username, dto.Email, dto.PassHash, dto.Verified, dto.VerifiedAt,
		dto.VerificationCode, dto.CodeIssuedAt, dto.CodeExpiresAt, dto.CodeConsumed, dto.CodeAttempts,
		dto.CreatedAt, dto.UpdatedAt,
	}
}

func DomainToAccountDTO(a *account.Account) AccountDTO {
	code := a.VerificationCode()
	return AccountDTO{
		ID:               a.ID(),
		Username:         a.Username(),
		Email:            a.Email(),
		PassHash:         a.PassHash(),
		Verified:         a.IsVerified(),
		VerifiedAt:       nullableTime(a.VerifiedAt()),
		VerificationCode: code.Value(),
		CodeIssuedAt:     nullableTime(code.IssuedAt()),
		CodeExpiresAt:    nullableTime(code.ExpiresAt()),
		CodeConsumed:     code.Consumed(),
		CodeAttempts:     int16(code.Attempts()),
		CreatedAt:        a.CreatedAt(),
		UpdatedAt:        a.UpdatedAt(),
	}
}

func AccountToDomain(dto AccountDTO) *account.Account {
	return account.Rehydrate(account.RehydrateArgs{
		ID:         dto.ID,
		Username:   dto.Username,
		Email:      dto.Email,
		PassHash:   dto.PassHash,
		Verified:   dto.Verified,
		VerifiedAt: valueTime(dto.VerifiedAt),
		Code: account.RehydrateCode(account.RehydrateCodeArgs{
			Value:     dto.VerificationCode,
			IssuedAt:  valueTime(dto.CodeIssuedAt),
			ExpiresAt: valueTime(dto.CodeExpiresAt),
			Consumed:  dto.CodeConsumed,
			Attempts:  int(dto.CodeAttempts),
		}),
		CreatedAt: dto.CreatedAt.UTC(),
		UpdatedAt: dto.UpdatedAt.UTC(),
	})
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
