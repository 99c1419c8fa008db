package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/i18nx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

var (
	tracer = otel.Tracer("insightbox/application/onboarding/cmd")
	logger = otelslog.NewLogger("insightbox/application/onboarding/cmd")
)

// ErrVerificationEmailFailed means the account and its code were stored but the
// code could not be mailed. The code stays valid and can be resent.
var ErrVerificationEmailFailed = &errorx.I18nError{
	Code:       errorx.CodeVerificationEmailFailed,
	MessageKey: i18nx.KeyVerificationEmailFailed,
	HTTPCode:   errorx.HTTPStatusCode(errorx.CodeVerificationEmailFailed),
}

type SignUp struct {
	Username string
	Email    string
	Password string
}

type SignUpHandler struct {
	tracer     trace.Tracer
	logger     *slog.Logger
	repo       Repo
	dispatcher VerificationDispatcher
	now        func() time.Time
}

type SignUpHandlerArgs struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Repo       Repo
	Dispatcher VerificationDispatcher
	Now        func() time.Time
}

func NewSignUpHandler(args SignUpHandlerArgs) *SignUpHandler {
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	if args.Now == nil {
		args.Now = time.Now
	}

	return &SignUpHandler{
		tracer:     args.Tracer,
		logger:     args.Logger,
		repo:       args.Repo,
		dispatcher: args.Dispatcher,
		now:        args.Now,
	}
}

// Handle creates the account, or resets a never verified one with the same email,
// issues a code and mails it. Mailing happens after the write has committed.
func (h *SignUpHandler) Handle(ctx context.Context, cmd SignUp) error {
	const op = "cmd.SignUpHandler.Handle"
	ctx, span := h.tracer.Start(ctx, "SignUpHandler.Handle")
	defer span.End()

	creds := account.Credentials{
		Username: cmd.Username,
		Email:    cmd.Email,
		Password: cmd.Password,
	}.Normalized()
	span.SetAttributes(
		attribute.String("account.email", logging.RedactEmail(creds.Email)),
		attribute.String("account.username", logging.RedactUsername(creds.Username)),
	)

	if err := creds.Validate(); err != nil {
		span.AddEvent("invalid sign-up input")
		return err
	}

	taken, err := h.repo.IsUsernameTaken(ctx, creds.Username)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to check username")
		return errorx.Wrap(err, op)
	}
	if taken {
		span.AddEvent("username held by a verified account")
		return errorx.Wrap(account.ErrUsernameTaken, op)
	}

	code, err := h.register(ctx, creds)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to register account")
		return errorx.Wrap(err, op)
	}

	res := h.dispatcher.DispatchVerification(ctx, mail.VerificationNotice{
		Email:    creds.Email,
		Username: creds.Username,
		Code:     code.Value(),
	})
	if !res.Success {
		err := ErrVerificationEmailFailed.WithCause(errors.New(res.Message))
		otelx.RecordSpanError(span, err, "verification email was not sent")
		h.logger.WarnContext(ctx, "account stored but verification email failed",
			slog.String("email", logging.RedactEmail(creds.Email)),
			slog.String("result", res.Message),
		)
		return errorx.Wrap(err, op)
	}

	h.logger.InfoContext(ctx, "account signed up", slog.String("email", logging.RedactEmail(creds.Email)))
	return nil
}

func (h *SignUpHandler) register(ctx context.Context, creds account.Credentials) (account.VerificationCode, error) {
	span := trace.SpanFromContext(ctx)

	_, err := h.repo.GetAccountByEmail(ctx, creds.Email)
	switch {
	case errors.Is(err, account.ErrNotFound):
		span.AddEvent("creating new account")
		acc, err := account.NewAccount(creds, h.now())
		if err != nil {
			return account.VerificationCode{}, err
		}
		code, err := acc.IssueCode(h.now())
		if err != nil {
			return account.VerificationCode{}, err
		}
		if err := h.repo.SaveAccount(ctx, acc); err != nil {
			return account.VerificationCode{}, err
		}
		return code, nil
	case err != nil:
		return account.VerificationCode{}, err
	}

	span.AddEvent("resetting unverified account")
	var code account.VerificationCode
	err = h.repo.UpdateAccountByEmail(ctx, creds.Email, func(ctx context.Context, acc *account.Account) error {
		var err error
		code, err = acc.Reset(creds, h.now())
		return err
	})
	if err != nil {
		return account.VerificationCode{}, err
	}
	return code, nil
}
