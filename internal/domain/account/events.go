package account

import (
	"time"

	"github.com/google/uuid"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/event"
)

const EventStreamName = "events_account"

type AccountRegistered struct {
	event.Header
	event.Otel
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
}

func (e AccountRegistered) GetStreamName() string {
	return EventStreamName
}

// VerificationCodeIssued is stored in the outbox, so it carries the expiry but
// never the code itself.
type VerificationCodeIssued struct {
	event.Header
	event.Otel
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e VerificationCodeIssued) GetStreamName() string {
	return EventStreamName
}

type AccountVerified struct {
	event.Header
	event.Otel
	AccountID  uuid.UUID `json:"account_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

func (e AccountVerified) GetStreamName() string {
	return EventStreamName
}
