package s3blob

import (
	"bufio"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

func settledAggregate(id string, settledAt time.Time) domain.MarketAggregate {
	winner := id + "-opt-yes"
	reward := big.NewInt(7500)
	return domain.MarketAggregate{
		Market: domain.Market{
			ID:              id,
			Title:           "Will it rain?",
			CreatorID:       "admin-1",
			Status:          domain.MarketStatusSettled,
			TotalPool:       big.NewInt(7500),
			CorrectOptionID: &winner,
			CreatedAt:       settledAt.Add(-24 * time.Hour),
			UpdatedAt:       settledAt,
		},
		Options: []domain.Option{
			{ID: winner, MarketID: id, Name: "Yes", TotalAmount: big.NewInt(5000)},
			{ID: id + "-opt-no", MarketID: id, Name: "No", TotalAmount: big.NewInt(2500)},
		},
		Stakes: []domain.Stake{
			{ID: id + "-s1", AccountID: "a-1", MarketID: id, OptionID: winner,
				Amount: big.NewInt(5000), Reward: reward, CreatedAt: settledAt.Add(-12 * time.Hour)},
			{ID: id + "-s2", AccountID: "a-2", MarketID: id, OptionID: id + "-opt-no",
				Amount: big.NewInt(2500), CreatedAt: settledAt.Add(-11 * time.Hour)},
		},
	}
}

func TestEncodeMonthOrdersBySettlementTime(t *testing.T) {
	later := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	buf, err := encodeMonth([]domain.MarketAggregate{
		settledAggregate("m-late", later),
		settledAggregate("m-early", earlier),
	})
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var rec archivedMarket
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	if len(ids) != 2 || ids[0] != "m-early" || ids[1] != "m-late" {
		t.Fatalf("order = %v, want [m-early m-late]", ids)
	}
}

func TestToArchivedRendersAmountsAsStrings(t *testing.T) {
	settledAt := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	rec := toArchived(settledAggregate("m-1", settledAt))

	if rec.TotalPool != "7500" {
		t.Fatalf("total_pool = %q", rec.TotalPool)
	}
	if rec.CorrectOptionID != "m-1-opt-yes" {
		t.Fatalf("correct_option_id = %q", rec.CorrectOptionID)
	}
	if !rec.SettledAt.Equal(settledAt) {
		t.Fatalf("settled_at = %v", rec.SettledAt)
	}
	if len(rec.Stakes) != 2 {
		t.Fatalf("stakes = %d", len(rec.Stakes))
	}
	if rec.Stakes[0].Reward == nil || *rec.Stakes[0].Reward != "7500" {
		t.Fatalf("winner reward = %v", rec.Stakes[0].Reward)
	}
	if rec.Stakes[1].Reward != nil {
		t.Fatal("losing stake must have no reward")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"reward":null`) {
		t.Fatalf("losing reward must be omitted: %s", data)
	}
}
