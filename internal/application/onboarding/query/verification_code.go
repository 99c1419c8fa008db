package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/pkg/env"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
)

type VerificationCode struct {
	Code      string    `json:"code"`
	State     string    `json:"state"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetVerificationCodeHandler exposes the active code for manual and end-to-end testing.
// It answers not found in production.
type GetVerificationCodeHandler struct {
	tracer trace.Tracer
	getter AccountGetter
	mode   env.Mode
	now    func() time.Time
}

func NewGetVerificationCodeHandler(getter AccountGetter, mode env.Mode) *GetVerificationCodeHandler {
	return &GetVerificationCodeHandler{tracer: tracer, getter: getter, mode: mode, now: time.Now}
}

func (h *GetVerificationCodeHandler) Handle(ctx context.Context, username string) (VerificationCode, error) {
	const op = "query.GetVerificationCodeHandler.Handle"
	ctx, span := h.tracer.Start(ctx, "GetVerificationCodeHandler.Handle")
	defer span.End()

	if !h.mode.ExposesDebugRoutes() {
		return VerificationCode{}, errorx.NewNotFound()
	}

	acc, err := h.getter.GetAccountByUsername(ctx, sanitizex.CleanToken(username))
	if err != nil {
		return VerificationCode{}, errorx.Wrap(err, op)
	}

	code := acc.VerificationCode()
	if !code.Issued() {
		return VerificationCode{}, errorx.NewNotFound()
	}

	return VerificationCode{
		Code:      code.Value(),
		State:     acc.CodeState(h.now()).String(),
		Attempts:  code.Attempts(),
		ExpiresAt: code.ExpiresAt(),
	}, nil
}
