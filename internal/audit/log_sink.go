package audit

import (
	"context"
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
)

// LogSink writes events to the structured log. It is used when no database is configured.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, e Event) error {
	logger.Info(ctx, "audit", "usage",
		slog.String("id", e.ID.String()),
		slog.Int64("user_id", e.UserID),
		slog.String("username", e.Username),
		slog.String("action", e.Action),
		slog.String("details", e.Details),
	)
	return nil
}
