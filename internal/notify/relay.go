package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// relayChannels are the bus channels the relay listens on.
var relayChannels = []string{
	domain.ChannelMarkets,
	domain.ChannelStakes,
}

// Relay subscribes to the signal bus and pushes each event through the
// Notifier. It is the glue between the ledger's event fabric and the
// operator-facing channels.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay forwarding bus events through the notifier.
func NewRelay(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run consumes events until the context is cancelled. Malformed payloads and
// delivery failures are logged and skipped; the relay never takes the ledger
// down.
func (r *Relay) Run(ctx context.Context) error {
	merged := make(chan []byte, 64)
	for _, ch := range relayChannels {
		msgCh, err := r.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case data, ok := <-msgCh:
					if !ok {
						return
					}
					select {
					case merged <- data:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-merged:
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				r.logger.WarnContext(ctx, "dropping malformed event",
					slog.String("error", err.Error()),
				)
				continue
			}
			title, message := renderEvent(ev)
			if err := r.notifier.Notify(ctx, ev.Type, title, message); err != nil {
				r.logger.WarnContext(ctx, "notification delivery failed",
					slog.String("event", ev.Type),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// renderEvent turns a bus event into a short title and body.
func renderEvent(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventMarketOpened:
		return "Market opened", fmt.Sprintf("%q is open for stakes (market %s)", ev.Title, ev.MarketID)
	case domain.EventMarketClosed:
		return "Market closed", fmt.Sprintf("%q no longer accepts stakes (market %s)", ev.Title, ev.MarketID)
	case domain.EventMarketSettled:
		msg := fmt.Sprintf("%q settled (market %s)", ev.Title, ev.MarketID)
		if d, ok := ev.Detail["disbursed"]; ok {
			msg += fmt.Sprintf(", disbursed %v", d)
		}
		if w, ok := ev.Detail["winners"]; ok {
			msg += fmt.Sprintf(" to %v winner(s)", w)
		}
		return "Market settled", msg
	case domain.EventStakePlaced:
		msg := fmt.Sprintf("market %s", ev.MarketID)
		if a, ok := ev.Detail["amount"]; ok {
			msg = fmt.Sprintf("%v coins on market %s", a, ev.MarketID)
		}
		return "Stake placed", msg
	case domain.EventBonusClaimed:
		msg := "daily bonus claimed"
		if a, ok := ev.Detail["amount"]; ok {
			msg = fmt.Sprintf("daily bonus of %v coins claimed", a)
		}
		return "Bonus claimed", msg
	default:
		return ev.Type, fmt.Sprintf("market %s", ev.MarketID)
	}
}
