package memory

import (
	"context"
	"math/big"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// The Store carries every entity, but AccountStore and MarketStore both name
// a Create and a GetByID. These thin views disambiguate so one Store can be
// handed out as each domain interface.

// Accounts returns the store as a domain.AccountStore.
func (s *Store) Accounts() domain.AccountStore { return accountView{s} }

// Markets returns the store as a domain.MarketStore.
func (s *Store) Markets() domain.MarketStore { return marketView{s} }

// Stakes returns the store as a domain.StakeStore.
func (s *Store) Stakes() domain.StakeStore { return stakeView{s} }

// Settlements returns the store as a domain.SettlementStore.
func (s *Store) Settlements() domain.SettlementStore { return settlementView{s} }

// Audit returns the store as a domain.AuditStore.
func (s *Store) Audit() domain.AuditStore { return auditView{s} }

type accountView struct{ s *Store }

func (v accountView) Create(ctx context.Context, a domain.Account) error {
	return v.s.Create(ctx, a)
}
func (v accountView) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return v.s.GetByID(ctx, id)
}
func (v accountView) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	return v.s.GetByUsername(ctx, username)
}
func (v accountView) Credit(ctx context.Context, id string, amount *big.Int) error {
	return v.s.Credit(ctx, id, amount)
}
func (v accountView) Debit(ctx context.Context, id string, amount *big.Int) error {
	return v.s.Debit(ctx, id, amount)
}
func (v accountView) ClaimBonus(ctx context.Context, id string, amount *big.Int, now, dayStart time.Time) error {
	return v.s.ClaimBonus(ctx, id, amount, now, dayStart)
}

type marketView struct{ s *Store }

func (v marketView) Create(ctx context.Context, m domain.Market, options []domain.Option) error {
	return v.s.CreateMarket(ctx, m, options)
}
func (v marketView) GetByID(ctx context.Context, id string) (domain.Market, error) {
	return v.s.GetMarket(ctx, id)
}
func (v marketView) Options(ctx context.Context, marketID string) ([]domain.Option, error) {
	return v.s.Options(ctx, marketID)
}
func (v marketView) List(ctx context.Context, statuses []domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	return v.s.List(ctx, statuses, opts)
}
func (v marketView) Count(ctx context.Context, statuses []domain.MarketStatus) (int64, error) {
	return v.s.Count(ctx, statuses)
}
func (v marketView) Close(ctx context.Context, marketID string) error {
	return v.s.Close(ctx, marketID)
}
func (v marketView) Aggregate(ctx context.Context, marketID string) (domain.MarketAggregate, error) {
	return v.s.Aggregate(ctx, marketID)
}
func (v marketView) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.MarketAggregate, error) {
	return v.s.ListSettledBefore(ctx, before)
}

type stakeView struct{ s *Store }

func (v stakeView) Place(ctx context.Context, st domain.Stake) error {
	return v.s.Place(ctx, st)
}
func (v stakeView) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Stake, error) {
	return v.s.ListByAccount(ctx, accountID, opts)
}
func (v stakeView) ListByMarket(ctx context.Context, marketID string) ([]domain.Stake, error) {
	return v.s.ListByMarket(ctx, marketID)
}

type settlementView struct{ s *Store }

func (v settlementView) Apply(ctx context.Context, settlement domain.Settlement) error {
	return v.s.Apply(ctx, settlement)
}

type auditView struct{ s *Store }

func (v auditView) Log(ctx context.Context, event string, detail map[string]any) error {
	return v.s.Log(ctx, event, detail)
}
func (v auditView) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return v.s.ListAudit(ctx, opts)
}
