package query

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

type GetAccountHandler struct {
	tracer trace.Tracer
	getter AccountGetter
}

func NewGetAccountHandler(getter AccountGetter) *GetAccountHandler {
	return &GetAccountHandler{tracer: tracer, getter: getter}
}

func (h *GetAccountHandler) Handle(ctx context.Context, id uuid.UUID) (Account, error) {
	const op = "query.GetAccountHandler.Handle"
	ctx, span := h.tracer.Start(ctx, "GetAccountHandler.Handle",
		trace.WithAttributes(attribute.String("account.id", id.String())),
	)
	defer span.End()

	acc, err := h.getter.GetAccountByID(ctx, id)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to get account")
		return Account{}, errorx.Wrap(err, op)
	}

	return accountView(acc), nil
}
