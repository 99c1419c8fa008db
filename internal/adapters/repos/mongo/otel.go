package mongo

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

var (
	tracer = otel.Tracer("insightbox/internal/adapters/repos/mongo")
	logger = otelslog.NewLogger("insightbox/internal/adapters/repos/mongo")
)
