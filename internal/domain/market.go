package domain

import (
	"math/big"
	"time"
)

// MarketStatus represents the lifecycle state of a market. Transitions are
// strictly monotonic: open -> closed -> settled.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market is a single prediction event with mutually exclusive options.
// TotalPool equals the sum of all option TotalAmounts at all times.
type Market struct {
	ID              string
	Title           string
	Description     string
	CreatorID       string
	Status          MarketStatus
	TotalPool       *big.Int
	CorrectOptionID *string // set only once the market is settled
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Option is one possible outcome of a market. The option set is created
// together with its market and is immutable afterwards.
type Option struct {
	ID          string
	MarketID    string
	Name        string
	TotalAmount *big.Int
}

// MarketAggregate is a consistent snapshot of a market together with its
// options and stakes, loaded inside a single transaction boundary. It is the
// input to settlement and to presentation projections.
type MarketAggregate struct {
	Market  Market
	Options []Option
	Stakes  []Stake
}

// Option returns the aggregate's option with the given ID, or false when the
// ID does not belong to this market.
func (a MarketAggregate) Option(id string) (Option, bool) {
	for _, o := range a.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// MarketSummary is the read-only projection served to presentation callers.
type MarketSummary struct {
	Market     Market
	Options    []OptionSummary
	StakeCount int64
}

// OptionSummary augments an option with its share of the pool for display.
type OptionSummary struct {
	Option
	Percent float64 // share of the pool, 0-100
}
