// Package maillog is a mail transport that only writes the mail to the log.
// It backs local runs and tests where no Resend key is configured.
package maillog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/valueobject/mails"
	"gitlab.com/insightbox/insightbox-backend/pkg/env"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
)

var logger = otelslog.NewLogger("insightbox/internal/adapters/services/maillog")

type Sender struct {
	logger *slog.Logger
	mode   env.Mode
}

// NewSender returns a log-only sender. The body, which carries the code, is
// logged only in modes that expose debug routes.
func NewSender(mode env.Mode, l *slog.Logger) *Sender {
	if l == nil {
		l = logger
	}
	return &Sender{logger: l, mode: mode}
}

func (s *Sender) SendMail(ctx context.Context, payload mails.Payload) (string, error) {
	id := "log-" + uuid.NewString()

	attrs := []any{
		"id", id,
		"from", payload.From,
		"subject", payload.Subject,
	}
	if s.mode.ExposesDebugRoutes() {
		attrs = append(attrs, "to", payload.To, "html", payload.HTML)
	} else {
		attrs = append(attrs, "to", logging.RedactEmail(payload.To))
	}

	s.logger.InfoContext(ctx, "mail logged instead of sent", attrs...)
	return id, nil
}
