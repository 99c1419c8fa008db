package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail/mailtmpl"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/valueobject/mails"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

var (
	tracer = otel.Tracer("insightbox/application/mail")
	logger = otelslog.NewLogger("insightbox/application/mail")
)

const (
	DefaultFrom    = "onboarding@resend.dev"
	DefaultCompany = "The Insight Box"

	VerificationSubject = "The Insight Box | Email Verification Code"
	WelcomeSubject      = "The Insight Box | Welcome"

	MsgVerificationSent   = "Verification email sent successfully"
	MsgVerificationFailed = "Failed to send verification email"
	MsgWelcomeSent        = "Welcome email sent successfully"
	MsgWelcomeFailed      = "Failed to send welcome email"

	defaultBreakerTimeout     = 30 * time.Second
	defaultBreakerMaxFailures = 5
)

type MailSender interface {
	// SendMail hands the mail to the transport and returns the transport's message id.
	SendMail(ctx context.Context, payload mails.Payload) (string, error)
}

// Result tells whether the transport accepted the mail. It says nothing about delivery.
type Result struct {
	Success bool
	Message string
	ID      string
}

type VerificationNotice struct {
	Email    string
	Username string
	Code     string
}

type WelcomeNotice struct {
	Email    string
	Username string
}

type Config struct {
	From    string
	Company string
	Address string

	// BreakerMaxFailures consecutive transport failures open the breaker for BreakerTimeout.
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	Now func() time.Time
}

type Dispatcher struct {
	sender  MailSender
	breaker *gobreaker.CircuitBreaker
	cfg     Config
	tracer  trace.Tracer
	logger  *slog.Logger
}

func NewDispatcher(sender MailSender, cfg Config) *Dispatcher {
	if sender == nil {
		panic("mail sender is nil")
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Company == "" {
		cfg.Company = DefaultCompany
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = defaultBreakerMaxFailures
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	maxFailures := cfg.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail-transport",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Dispatcher{
		sender:  sender,
		breaker: breaker,
		cfg:     cfg,
		tracer:  tracer,
		logger:  logger,
	}
}

// DispatchVerification renders the one-time code email and hands it to the transport.
// Every failure is logged and reported through Result; it never returns an error.
func (d *Dispatcher) DispatchVerification(ctx context.Context, n VerificationNotice) Result {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.DispatchVerification", trace.WithAttributes(
		attribute.String("mail.to", logging.RedactEmail(n.Email)),
		attribute.String("mail.username", logging.RedactUsername(n.Username)),
	))
	defer span.End()

	html, err := mailtmpl.RenderVerification(mailtmpl.VerificationData{
		Footer:           d.footer(),
		Username:         n.Username,
		OTP:              n.Code,
		ExpiresInMinutes: int(account.CodeTTL / time.Minute),
	})
	if err != nil {
		return d.fail(ctx, span, err, n.Email, MsgVerificationFailed)
	}

	id, err := d.send(ctx, mails.Payload{
		From:    d.cfg.From,
		To:      n.Email,
		Subject: VerificationSubject,
		HTML:    html,
	})
	if err != nil {
		return d.fail(ctx, span, err, n.Email, MsgVerificationFailed)
	}

	span.SetAttributes(attribute.String("mail.id", id))
	d.logger.InfoContext(ctx, "verification email sent", slog.String("mail.id", id), slog.String("to", logging.RedactEmail(n.Email)))
	return Result{Success: true, Message: MsgVerificationSent, ID: id}
}

func (d *Dispatcher) DispatchWelcome(ctx context.Context, n WelcomeNotice) Result {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.DispatchWelcome", trace.WithAttributes(
		attribute.String("mail.to", logging.RedactEmail(n.Email)),
	))
	defer span.End()

	html, err := mailtmpl.RenderWelcome(mailtmpl.WelcomeData{
		Footer:   d.footer(),
		Username: n.Username,
	})
	if err != nil {
		return d.fail(ctx, span, err, n.Email, MsgWelcomeFailed)
	}

	id, err := d.send(ctx, mails.Payload{
		From:    d.cfg.From,
		To:      n.Email,
		Subject: WelcomeSubject,
		HTML:    html,
	})
	if err != nil {
		return d.fail(ctx, span, err, n.Email, MsgWelcomeFailed)
	}

	span.SetAttributes(attribute.String("mail.id", id))
	return Result{Success: true, Message: MsgWelcomeSent, ID: id}
}

func (d *Dispatcher) send(ctx context.Context, payload mails.Payload) (id string, err error) {
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("invalid mail payload: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mail transport panicked: %v", r)
		}
	}()

	res, err := d.breaker.Execute(func() (interface{}, error) {
		return d.sender.SendMail(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("mail transport circuit open: %w", err)
		}
		return "", err
	}

	id, _ = res.(string)
	return id, nil
}

func (d *Dispatcher) fail(ctx context.Context, span trace.Span, err error, to, msg string) Result {
	otelx.RecordSpanError(span, err, msg)
	d.logger.ErrorContext(ctx, msg,
		slog.String("to", logging.RedactEmail(to)),
		slog.Any("error", err),
	)
	return Result{Success: false, Message: msg}
}

func (d *Dispatcher) footer() mailtmpl.Footer {
	return mailtmpl.Footer{
		Year:    d.cfg.Now().Year(),
		Company: d.cfg.Company,
		Address: d.cfg.Address,
	}
}
