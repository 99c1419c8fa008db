package mailevent

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

var (
	tracer = otel.Tracer("insightbox/application/mail/event")
	logger = otelslog.NewLogger("insightbox/application/mail/event")
)

type WelcomeDispatcher interface {
	DispatchWelcome(ctx context.Context, n mail.WelcomeNotice) mail.Result
}

type MailEventHandler struct {
	tracer     trace.Tracer
	logger     *slog.Logger
	dispatcher WelcomeDispatcher
}

type MailEventHandlerArgs struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Dispatcher WelcomeDispatcher
}

func NewMailEventHandler(args MailEventHandlerArgs) *MailEventHandler {
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}

	return &MailEventHandler{
		tracer:     args.Tracer,
		logger:     args.Logger,
		dispatcher: args.Dispatcher,
	}
}

// HandleAccountVerified sends the welcome mail. A failed send is logged and the
// event is still acked; the account is verified either way.
func (h *MailEventHandler) HandleAccountVerified(ctx context.Context, e *account.AccountVerified) error {
	if e == nil {
		return nil
	}
	ctx, span := h.tracer.Start(
		ctx,
		"MailEventHandler.HandleAccountVerified",
		trace.WithNewRoot(),
		trace.WithLinks(trace.LinkFromContext(e.Extract())),
		trace.WithAttributes(
			attribute.String("event.account.id", e.AccountID.String()),
			attribute.String("event.account.email", logging.RedactEmail(e.Email)),
		),
	)
	defer span.End()

	l := h.logger.With(
		slog.String("event", "AccountVerified"),
		slog.String("account.id", e.AccountID.String()),
		slog.String("account.email", logging.RedactEmail(e.Email)),
	)

	res := h.dispatcher.DispatchWelcome(ctx, mail.WelcomeNotice{
		Email:    e.Email,
		Username: e.Username,
	})
	if !res.Success {
		otelx.SetSpanAttrs(span, map[string]any{"mail.result": res.Message})
		l.WarnContext(ctx, "welcome email was not sent", slog.String("result", res.Message))
		return nil
	}

	l.DebugContext(ctx, "welcome email sent", slog.String("mail.id", res.ID))
	return nil
}
