package handler

import (
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// Response DTOs. Amounts render as decimal strings: pool sizes can exceed
// what JSON numbers represent exactly.

type accountJSON struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Admin       bool       `json:"admin"`
	Balance     string     `json:"balance"`
	LastBonusAt *time.Time `json:"last_bonus_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func renderAccount(a domain.Account) accountJSON {
	return accountJSON{
		ID:          a.ID,
		Username:    a.Username,
		Admin:       a.Admin,
		Balance:     a.Balance.String(),
		LastBonusAt: a.LastBonusAt,
		CreatedAt:   a.CreatedAt,
	}
}

type marketJSON struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	CreatorID       string    `json:"creator_id"`
	Status          string    `json:"status"`
	TotalPool       string    `json:"total_pool"`
	CorrectOptionID *string   `json:"correct_option_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func renderMarket(m domain.Market) marketJSON {
	return marketJSON{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		CreatorID:       m.CreatorID,
		Status:          string(m.Status),
		TotalPool:       m.TotalPool.String(),
		CorrectOptionID: m.CorrectOptionID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type optionJSON struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TotalAmount string  `json:"total_amount"`
	Percent     float64 `json:"percent"`
}

type summaryJSON struct {
	Market     marketJSON   `json:"market"`
	Options    []optionJSON `json:"options"`
	StakeCount int64        `json:"stake_count"`
}

func renderSummary(s domain.MarketSummary) summaryJSON {
	out := summaryJSON{
		Market:     renderMarket(s.Market),
		Options:    make([]optionJSON, 0, len(s.Options)),
		StakeCount: s.StakeCount,
	}
	for _, o := range s.Options {
		out.Options = append(out.Options, optionJSON{
			ID:          o.ID,
			Name:        o.Name,
			TotalAmount: o.TotalAmount.String(),
			Percent:     o.Percent,
		})
	}
	return out
}

type stakeJSON struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	OptionID  string    `json:"option_id"`
	Amount    string    `json:"amount"`
	Reward    *string   `json:"reward,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func renderStake(s domain.Stake) stakeJSON {
	out := stakeJSON{
		ID:        s.ID,
		MarketID:  s.MarketID,
		OptionID:  s.OptionID,
		Amount:    s.Amount.String(),
		CreatedAt: s.CreatedAt,
	}
	if s.Reward != nil {
		reward := s.Reward.String()
		out.Reward = &reward
	}
	return out
}

func renderStakes(stakes []domain.Stake) []stakeJSON {
	out := make([]stakeJSON, 0, len(stakes))
	for _, s := range stakes {
		out = append(out, renderStake(s))
	}
	return out
}
