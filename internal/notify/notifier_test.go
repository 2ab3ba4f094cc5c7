package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

type fakeSender struct {
	mu     sync.Mutex
	name   string
	sent   []string
	failed bool
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, title+": "+message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEventType(t *testing.T) {
	sender := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{domain.EventMarketSettled}, testLogger())

	if err := n.Notify(context.Background(), domain.EventStakePlaced, "t", "m"); err != nil {
		t.Fatalf("filtered notify: %v", err)
	}
	if sender.count() != 0 {
		t.Fatal("filtered event must not be delivered")
	}

	if err := n.Notify(context.Background(), domain.EventMarketSettled, "t", "m"); err != nil {
		t.Fatalf("allowed notify: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("delivered = %d, want 1", sender.count())
	}
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	sender := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	for _, ev := range []string{domain.EventMarketOpened, domain.EventBonusClaimed} {
		if err := n.Notify(context.Background(), ev, "t", "m"); err != nil {
			t.Fatalf("notify %s: %v", ev, err)
		}
	}
	if sender.count() != 2 {
		t.Fatalf("delivered = %d, want 2", sender.count())
	}
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", failed: true}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), domain.EventMarketOpened, "t", "m")
	if err == nil {
		t.Fatal("expected combined error from failed sender")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Fatalf("error = %v, want sender name", err)
	}
	if good.count() != 1 {
		t.Fatal("healthy sender must still receive the notification")
	}
}

type fakeBus struct {
	channels map[string]chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{channels: map[string]chan []byte{
		domain.ChannelMarkets: make(chan []byte, 8),
		domain.ChannelStakes:  make(chan []byte, 8),
	}}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.channels[channel] <- payload
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch, ok := f.channels[channel]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return ch, nil
}

func (f *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (f *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestRelayForwardsBusEvents(t *testing.T) {
	sender := &fakeSender{name: "test"}
	notifier := NewNotifier([]Sender{sender}, nil, testLogger())
	bus := newFakeBus()
	relay := NewRelay(bus, notifier, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	payload, _ := json.Marshal(domain.Event{
		Type:     domain.EventMarketSettled,
		MarketID: "m-1",
		Title:    "Will it rain?",
		Detail:   map[string]any{"disbursed": "5000"},
	})
	if err := bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("relay did not deliver the event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	sender.mu.Lock()
	got := sender.sent[0]
	sender.mu.Unlock()
	if !strings.Contains(got, "Market settled") || !strings.Contains(got, "5000") {
		t.Fatalf("message = %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}

func TestRenderEventShapes(t *testing.T) {
	title, msg := renderEvent(domain.Event{
		Type:     domain.EventStakePlaced,
		MarketID: "m-9",
		Detail:   map[string]any{"amount": "2500"},
	})
	if title != "Stake placed" || !strings.Contains(msg, "2500") {
		t.Fatalf("stake render = %q / %q", title, msg)
	}

	title, _ = renderEvent(domain.Event{Type: "something_else", MarketID: "m-1"})
	if title != "something_else" {
		t.Fatalf("unknown event title = %q", title)
	}
}
