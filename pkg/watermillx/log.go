package watermillx

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// SlogAdapter lets watermill log through slog. Watermill's Info output is very
// chatty, so it is emitted at infoLevel, which callers usually set to Debug.
type SlogAdapter struct {
	logger    *slog.Logger
	infoLevel slog.Level
}

func NewSlogAdapter(logger *slog.Logger, infoLevel slog.Level) watermill.LoggerAdapter {
	return &SlogAdapter{logger: logger, infoLevel: infoLevel}
}

func (l *SlogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.log(slog.LevelError, msg, fields, slog.Any("error", err))
}

func (l *SlogAdapter) Info(msg string, fields watermill.LogFields) {
	l.log(l.infoLevel, msg, fields)
}

func (l *SlogAdapter) Debug(msg string, fields watermill.LogFields) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *SlogAdapter) Trace(msg string, fields watermill.LogFields) {
	l.log(slog.LevelDebug-4, msg, fields)
}

func (l *SlogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &SlogAdapter{
		logger:    l.logger.With(fieldsToAttrs(fields)...),
		infoLevel: l.infoLevel,
	}
}

func (l *SlogAdapter) log(level slog.Level, msg string, fields watermill.LogFields, extra ...slog.Attr) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, msg, fieldsToAttrs(fields, extra...)...)
}

func fieldsToAttrs(fields watermill.LogFields, extra ...slog.Attr) []any {
	attrs := make([]any, 0, len(fields)+len(extra))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	for _, attr := range extra {
		attrs = append(attrs, attr)
	}
	return attrs
}
