package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/ARUMANDESU/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
	"gitlab.com/insightbox/insightbox-backend/pkg/validationx"
)

type Verify struct {
	Username string
	Code     string
}

func (v Verify) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Username, validationx.UsernameRules...),
		validation.Field(&v.Code, validationx.VerificationCodeRules(account.CodeLength)...),
	)
}

type VerifyHandler struct {
	tracer trace.Tracer
	logger *slog.Logger
	repo   Repo
	now    func() time.Time
}

type VerifyHandlerArgs struct {
	Tracer trace.Tracer
	Logger *slog.Logger
	Repo   Repo
	Now    func() time.Time
}

func NewVerifyHandler(args VerifyHandlerArgs) *VerifyHandler {
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	if args.Now == nil {
		args.Now = time.Now
	}

	return &VerifyHandler{
		tracer: args.Tracer,
		logger: args.Logger,
		repo:   args.Repo,
		now:    args.Now,
	}
}

func (h *VerifyHandler) Handle(ctx context.Context, cmd Verify) error {
	const op = "cmd.VerifyHandler.Handle"

	cmd.Username = sanitizex.CleanToken(cmd.Username)
	cmd.Code = sanitizex.CleanToken(cmd.Code)

	ctx, span := h.tracer.Start(ctx, "VerifyHandler.Handle",
		trace.WithAttributes(attribute.String("account.username", logging.RedactUsername(cmd.Username))),
	)
	defer span.End()

	if err := cmd.Validate(); err != nil {
		span.AddEvent("invalid verify input")
		return err
	}

	err := h.repo.UpdateAccountByUsername(ctx, cmd.Username, func(ctx context.Context, acc *account.Account) error {
		span := trace.SpanFromContext(ctx)

		// A verified account has its code consumed, so a replay fails as a mismatch.
		if err := acc.RedeemCode(cmd.Code, h.now()); err != nil {
			span.AddEvent("failed to redeem verification code", trace.WithAttributes(
				attribute.String("code.state", acc.CodeState(h.now()).String()),
				attribute.Int("code.attempts", acc.VerificationCode().Attempts()),
			))
			return errorx.Wrap(err, op)
		}

		return nil
	})
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to verify account")
		return errorx.Wrap(err, op)
	}

	h.logger.InfoContext(ctx, "account verified", slog.String("username", logging.RedactUsername(cmd.Username)))
	return nil
}
