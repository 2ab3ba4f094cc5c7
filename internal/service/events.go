package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// publishEvent serializes an event, publishes it on the ephemeral channel,
// and mirrors it onto the durable stream. Bus failures are logged and
// swallowed: the ledger write already committed and event delivery is best
// effort.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, ev domain.Event) {
	if bus == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.WarnContext(ctx, "event marshal failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("type", ev.Type),
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, domain.StreamEvents, payload); err != nil {
		logger.WarnContext(ctx, "event stream append failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
