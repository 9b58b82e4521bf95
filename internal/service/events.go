package service

import (
	"context"
	"log/slog"

	"nexify/internal/notifications"
	"nexify/internal/observability"

	"github.com/google/uuid"
)

// publish emits a realtime event to userID. Failures are logged and counted
// and never reach the caller.
func publish(ctx context.Context, events notifications.Publisher, userID uuid.UUID, eventType string, payload interface{}) {
	if events == nil {
		return
	}
	if err := events.PublishEvent(ctx, userID, eventType, payload); err != nil {
		observability.NotificationFailures.WithLabelValues("realtime", eventType).Inc()
		observability.GlobalLogger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("event", eventType),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}
