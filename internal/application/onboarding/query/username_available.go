package query

import (
	"context"

	"github.com/ARUMANDESU/validation"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
	"gitlab.com/insightbox/insightbox-backend/pkg/validationx"
)

type UsernameAvailableHandler struct {
	tracer  trace.Tracer
	checker UsernameChecker
}

func NewUsernameAvailableHandler(checker UsernameChecker) *UsernameAvailableHandler {
	return &UsernameAvailableHandler{tracer: tracer, checker: checker}
}

// Handle reports whether username is free. Names held only by unverified accounts
// count as free, because a verified sign-up may still claim them.
func (h *UsernameAvailableHandler) Handle(ctx context.Context, username string) (bool, error) {
	const op = "query.UsernameAvailableHandler.Handle"

	username = sanitizex.CleanToken(username)
	ctx, span := h.tracer.Start(ctx, "UsernameAvailableHandler.Handle")
	defer span.End()
	otelx.SetSpanAttrs(span, map[string]any{"account.username": logging.RedactUsername(username)})

	if err := (validation.Errors{
		"username": validation.Validate(username, validationx.UsernameRules...),
	}).Filter(); err != nil {
		return false, err
	}

	taken, err := h.checker.IsUsernameTaken(ctx, username)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to check username")
		return false, errorx.Wrap(err, op)
	}

	return !taken, nil
}
