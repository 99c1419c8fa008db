package resend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/resend/resend-go/v2"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/valueobject/mails"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

var (
	tracer = otel.Tracer("insightbox/internal/adapters/services/resend")
	logger = otelslog.NewLogger("insightbox/internal/adapters/services/resend")
)

var ErrEmptyMessageID = errors.New("resend returned an empty message id")

// DefaultRequestsPerSecond matches the Resend API default quota.
const DefaultRequestsPerSecond = 2

// Sender delivers mail through the Resend API.
type Sender struct {
	client  *resend.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewSender wraps a ready client, see resend.NewClient. Requests wait on limiter
// before they are sent; a nil limiter sends without waiting.
//
// WARNING: panics if client is nil
func NewSender(client *resend.Client, limiter *rate.Limiter) *Sender {
	if client == nil {
		panic("resend client cannot be nil")
	}
	return &Sender{client: client, limiter: limiter, tracer: tracer, logger: logger}
}

// NewLimiter allows rps requests per second with a burst of the same size.
func NewLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return rate.NewLimiter(rate.Limit(rps), rps)
}

func (s *Sender) SendMail(ctx context.Context, payload mails.Payload) (string, error) {
	const op = "resend.Sender.SendMail"
	ctx, span := s.tracer.Start(ctx, "resend.SendMail", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			otelx.RecordSpanError(span, err, "gave up waiting for the send quota")
			return "", errorx.Wrap(errorx.NewUpstreamServiceError().WithCause(err), op)
		}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    payload.From,
		To:      []string{payload.To},
		Subject: payload.Subject,
		Html:    payload.HTML,
	})
	if err != nil {
		otelx.RecordSpanError(span, err, "resend request failed")
		return "", errorx.Wrap(errorx.NewUpstreamServiceError().WithCause(err), op)
	}
	if sent == nil || sent.Id == "" {
		otelx.RecordSpanError(span, ErrEmptyMessageID, "resend returned no id")
		return "", errorx.Wrap(errorx.NewUpstreamServiceError().WithCause(ErrEmptyMessageID), op)
	}

	span.SetAttributes(attribute.String("mail.id", sent.Id))
	s.logger.DebugContext(ctx, "mail accepted by resend", "id", sent.Id)

	return sent.Id, nil
}
