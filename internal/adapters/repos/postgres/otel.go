package postgres

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

var (
	tracer = otel.Tracer("insightbox/internal/adapters/repos/postgres")
	logger = otelslog.NewLogger("insightbox/internal/adapters/repos/postgres")
)
