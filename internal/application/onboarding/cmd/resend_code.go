package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ARUMANDESU/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
	"gitlab.com/insightbox/insightbox-backend/pkg/validationx"
)

type ResendCode struct {
	Email string
}

func (r ResendCode) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validationx.EmailRules...),
	)
}

type ResendCodeHandler struct {
	tracer     trace.Tracer
	logger     *slog.Logger
	repo       Repo
	dispatcher VerificationDispatcher
	now        func() time.Time
}

type ResendCodeHandlerArgs struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Repo       Repo
	Dispatcher VerificationDispatcher
	Now        func() time.Time
}

func NewResendCodeHandler(args ResendCodeHandlerArgs) *ResendCodeHandler {
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	if args.Now == nil {
		args.Now = time.Now
	}

	return &ResendCodeHandler{
		tracer:     args.Tracer,
		logger:     args.Logger,
		repo:       args.Repo,
		dispatcher: args.Dispatcher,
		now:        args.Now,
	}
}

// Handle issues a fresh code, superseding the old one, and mails it.
func (h *ResendCodeHandler) Handle(ctx context.Context, cmd ResendCode) error {
	const op = "cmd.ResendCodeHandler.Handle"

	cmd.Email = sanitizex.CleanEmail(cmd.Email)
	ctx, span := h.tracer.Start(ctx, "ResendCodeHandler.Handle",
		trace.WithAttributes(attribute.String("account.email", logging.RedactEmail(cmd.Email))),
	)
	defer span.End()

	if err := cmd.Validate(); err != nil {
		span.AddEvent("invalid resend input")
		return err
	}

	var (
		code     account.VerificationCode
		username string
	)
	err := h.repo.UpdateAccountByEmail(ctx, cmd.Email, func(ctx context.Context, acc *account.Account) error {
		var err error
		code, err = acc.ResendCode(h.now())
		username = acc.Username()
		return err
	})
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to resend verification code")
		return errorx.Wrap(err, op)
	}

	res := h.dispatcher.DispatchVerification(ctx, mail.VerificationNotice{
		Email:    cmd.Email,
		Username: username,
		Code:     code.Value(),
	})
	if !res.Success {
		err := ErrVerificationEmailFailed.WithCause(errors.New(res.Message))
		otelx.RecordSpanError(span, err, "verification email was not sent")
		return errorx.Wrap(err, op)
	}

	return nil
}
