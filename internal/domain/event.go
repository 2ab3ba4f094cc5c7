package domain

import "time"

// Signal bus channels and streams.
const (
	// ChannelMarkets carries market lifecycle events (opened/closed/settled).
	ChannelMarkets = "ch:markets"
	// ChannelStakes carries stake placement events.
	ChannelStakes = "ch:stakes"
	// StreamEvents is the durable stream mirroring every published event.
	StreamEvents = "stream:events"
)

// Event types published on the bus.
const (
	EventMarketOpened  = "market_opened"
	EventMarketClosed  = "market_closed"
	EventMarketSettled = "market_settled"
	EventStakePlaced   = "stake_placed"
	EventBonusClaimed  = "bonus_claimed"
)

// Event is the JSON envelope published on the signal bus and forwarded to
// WebSocket clients and notification channels.
type Event struct {
	Type     string         `json:"type"`
	MarketID string         `json:"market_id,omitempty"`
	Title    string         `json:"title,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}
