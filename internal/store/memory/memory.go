// Package memory provides in-memory implementations of the domain store
// interfaces. They honor the same atomicity and linearizability contracts as
// the PostgreSQL stores and back the service tests, which need real
// concurrency semantics without external infrastructure.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// Store holds every entity behind a pair of mutexes. Lock ordering is fixed:
// markets before accounts. Place and Apply both cross the two domains and
// must take the locks in that order.
type Store struct {
	marketMu  sync.Mutex
	accountMu sync.Mutex

	accounts map[string]*domain.Account
	markets  map[string]*domain.Market
	options  map[string][]*domain.Option // keyed by market ID, name order
	stakes   map[string][]*domain.Stake  // keyed by market ID, placement order
	auditMu  sync.Mutex
	audit    []domain.AuditEntry
	auditSeq int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		markets:  make(map[string]*domain.Market),
		options:  make(map[string][]*domain.Option),
		stakes:   make(map[string][]*domain.Stake),
	}
}

func cloneBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

func cloneAccount(a *domain.Account) domain.Account {
	out := *a
	out.Balance = cloneBig(a.Balance)
	if a.LastBonusAt != nil {
		t := *a.LastBonusAt
		out.LastBonusAt = &t
	}
	return out
}

func cloneMarket(m *domain.Market) domain.Market {
	out := *m
	out.TotalPool = cloneBig(m.TotalPool)
	if m.CorrectOptionID != nil {
		id := *m.CorrectOptionID
		out.CorrectOptionID = &id
	}
	return out
}

func cloneOption(o *domain.Option) domain.Option {
	out := *o
	out.TotalAmount = cloneBig(o.TotalAmount)
	return out
}

func cloneStake(s *domain.Stake) domain.Stake {
	out := *s
	out.Amount = cloneBig(s.Amount)
	out.Reward = cloneBig(s.Reward)
	return out
}

// ---------------------------------------------------------------------------
// AccountStore
// ---------------------------------------------------------------------------

// Create inserts a new account.
func (s *Store) Create(ctx context.Context, a domain.Account) error {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("memory: account %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	for _, existing := range s.accounts {
		if existing.Username == a.Username {
			return fmt.Errorf("memory: username %s: %w", a.Username, domain.ErrAlreadyExists)
		}
	}
	if a.Balance == nil {
		a.Balance = new(big.Int)
	}
	stored := cloneAccount(&a)
	s.accounts[a.ID] = &stored
	return nil
}

// GetByID returns the account with the given ID.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Account, error) {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("memory: account %s: %w", id, domain.ErrNotFound)
	}
	return cloneAccount(a), nil
}

// GetByUsername returns the account with the given username.
func (s *Store) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return cloneAccount(a), nil
		}
	}
	return domain.Account{}, fmt.Errorf("memory: username %s: %w", username, domain.ErrNotFound)
}

// Credit atomically increases the balance.
func (s *Store) Credit(ctx context.Context, id string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	s.accountMu.Lock()
	defer s.accountMu.Unlock()
	return s.creditLocked(id, amount)
}

func (s *Store) creditLocked(id string, amount *big.Int) error {
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("memory: credit account %s: %w", id, domain.ErrNotFound)
	}
	a.Balance.Add(a.Balance, amount)
	return nil
}

// Debit atomically decreases the balance, failing when it would go negative.
func (s *Store) Debit(ctx context.Context, id string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	s.accountMu.Lock()
	defer s.accountMu.Unlock()
	return s.debitLocked(id, amount)
}

func (s *Store) debitLocked(id string, amount *big.Int) error {
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("memory: debit account %s: %w", id, domain.ErrNotFound)
	}
	if a.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("memory: debit account %s: %w", id, domain.ErrInsufficientFunds)
	}
	a.Balance.Sub(a.Balance, amount)
	return nil
}

// ClaimBonus credits amount and stamps LastBonusAt in one step.
func (s *Store) ClaimBonus(ctx context.Context, id string, amount *big.Int, now, dayStart time.Time) error {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("memory: claim bonus for %s: %w", id, domain.ErrNotFound)
	}
	if a.LastBonusAt != nil && !a.LastBonusAt.Before(dayStart) {
		return fmt.Errorf("memory: claim bonus for %s: %w", id, domain.ErrInvalidState)
	}
	a.Balance.Add(a.Balance, amount)
	stamp := now
	a.LastBonusAt = &stamp
	return nil
}

// ---------------------------------------------------------------------------
// MarketStore
// ---------------------------------------------------------------------------

// CreateMarket inserts a market and its options atomically. The method name
// differs from the interface (Create is taken by AccountStore); use the
// Markets() view for a domain.MarketStore.
func (s *Store) CreateMarket(ctx context.Context, m domain.Market, options []domain.Option) error {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("memory: market %s: %w", m.ID, domain.ErrAlreadyExists)
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if seen[o.Name] {
			return fmt.Errorf("memory: option %q on market %s: %w", o.Name, m.ID, domain.ErrAlreadyExists)
		}
		seen[o.Name] = true
	}

	if m.TotalPool == nil {
		m.TotalPool = new(big.Int)
	}
	stored := cloneMarket(&m)
	s.markets[m.ID] = &stored

	opts := make([]*domain.Option, 0, len(options))
	for _, o := range options {
		o.MarketID = m.ID
		if o.TotalAmount == nil {
			o.TotalAmount = new(big.Int)
		}
		oc := cloneOption(&o)
		opts = append(opts, &oc)
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Name < opts[j].Name })
	s.options[m.ID] = opts
	return nil
}

// GetMarket returns the market with the given ID.
func (s *Store) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("memory: market %s: %w", id, domain.ErrNotFound)
	}
	return cloneMarket(m), nil
}

// Options returns the market's option set in name order.
func (s *Store) Options(ctx context.Context, marketID string) ([]domain.Option, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	opts, ok := s.options[marketID]
	if !ok {
		return nil, fmt.Errorf("memory: market %s: %w", marketID, domain.ErrNotFound)
	}
	out := make([]domain.Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, cloneOption(o))
	}
	return out, nil
}

// List returns markets filtered by status, newest first.
func (s *Store) List(ctx context.Context, statuses []domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	wanted := make(map[domain.MarketStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var markets []domain.Market
	for _, m := range s.markets {
		if len(wanted) > 0 && !wanted[m.Status] {
			continue
		}
		markets = append(markets, cloneMarket(m))
	}
	sort.Slice(markets, func(i, j int) bool {
		if !markets[i].CreatedAt.Equal(markets[j].CreatedAt) {
			return markets[i].CreatedAt.After(markets[j].CreatedAt)
		}
		return markets[i].ID < markets[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(markets) {
			return nil, nil
		}
		markets = markets[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(markets) {
		markets = markets[:opts.Limit]
	}
	return markets, nil
}

// Count returns the number of markets matching the status filter. An empty
// status list counts all markets.
func (s *Store) Count(ctx context.Context, statuses []domain.MarketStatus) (int64, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	if len(statuses) == 0 {
		return int64(len(s.markets)), nil
	}
	var n int64
	for _, m := range s.markets {
		for _, st := range statuses {
			if m.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

// Close transitions the market open -> closed.
func (s *Store) Close(ctx context.Context, marketID string) error {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	m, ok := s.markets[marketID]
	if !ok {
		return fmt.Errorf("memory: close market %s: %w", marketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("memory: close market %s: %w", marketID, domain.ErrInvalidState)
	}
	m.Status = domain.MarketStatusClosed
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Aggregate loads the market, its options, and its stakes as one snapshot.
func (s *Store) Aggregate(ctx context.Context, marketID string) (domain.MarketAggregate, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	return s.aggregateLocked(marketID)
}

func (s *Store) aggregateLocked(marketID string) (domain.MarketAggregate, error) {
	m, ok := s.markets[marketID]
	if !ok {
		return domain.MarketAggregate{}, fmt.Errorf("memory: market %s: %w", marketID, domain.ErrNotFound)
	}

	agg := domain.MarketAggregate{Market: cloneMarket(m)}
	for _, o := range s.options[marketID] {
		agg.Options = append(agg.Options, cloneOption(o))
	}
	for _, st := range s.stakes[marketID] {
		agg.Stakes = append(agg.Stakes, cloneStake(st))
	}
	return agg, nil
}

// ListSettledBefore returns aggregates of markets settled before the cutoff.
func (s *Store) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.MarketAggregate, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	var ids []string
	for id, m := range s.markets {
		if m.Status == domain.MarketStatusSettled && m.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	aggregates := make([]domain.MarketAggregate, 0, len(ids))
	for _, id := range ids {
		agg, err := s.aggregateLocked(id)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, nil
}

// ---------------------------------------------------------------------------
// StakeStore
// ---------------------------------------------------------------------------

// Place applies one wager atomically under both locks, market first.
func (s *Store) Place(ctx context.Context, st domain.Stake) error {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	m, ok := s.markets[st.MarketID]
	if !ok {
		return fmt.Errorf("memory: place stake on %s: %w", st.MarketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("memory: place stake on %s: %w", st.MarketID, domain.ErrInvalidState)
	}

	var option *domain.Option
	for _, o := range s.options[st.MarketID] {
		if o.ID == st.OptionID {
			option = o
			break
		}
	}
	if option == nil {
		return fmt.Errorf("memory: option %s on market %s: %w", st.OptionID, st.MarketID, domain.ErrNotFound)
	}

	s.accountMu.Lock()
	defer s.accountMu.Unlock()
	if err := s.debitLocked(st.AccountID, st.Amount); err != nil {
		return err
	}

	option.TotalAmount.Add(option.TotalAmount, st.Amount)
	m.TotalPool.Add(m.TotalPool, st.Amount)
	m.UpdatedAt = time.Now().UTC()

	stored := cloneStake(&st)
	s.stakes[st.MarketID] = append(s.stakes[st.MarketID], &stored)
	return nil
}

// ListByAccount returns the account's stakes, newest first.
func (s *Store) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Stake, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	var stakes []domain.Stake
	for _, marketStakes := range s.stakes {
		for _, st := range marketStakes {
			if st.AccountID == accountID {
				stakes = append(stakes, cloneStake(st))
			}
		}
	}
	sort.Slice(stakes, func(i, j int) bool {
		if !stakes[i].CreatedAt.Equal(stakes[j].CreatedAt) {
			return stakes[i].CreatedAt.After(stakes[j].CreatedAt)
		}
		return stakes[i].ID < stakes[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(stakes) {
			return nil, nil
		}
		stakes = stakes[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(stakes) {
		stakes = stakes[:opts.Limit]
	}
	return stakes, nil
}

// ListByMarket returns every stake on the market in placement order.
func (s *Store) ListByMarket(ctx context.Context, marketID string) ([]domain.Stake, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	var stakes []domain.Stake
	for _, st := range s.stakes[marketID] {
		stakes = append(stakes, cloneStake(st))
	}
	return stakes, nil
}

// ---------------------------------------------------------------------------
// SettlementStore
// ---------------------------------------------------------------------------

// Apply writes the settlement atomically under both locks, market first.
func (s *Store) Apply(ctx context.Context, settlement domain.Settlement) error {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	m, ok := s.markets[settlement.MarketID]
	if !ok {
		return fmt.Errorf("memory: settle market %s: %w", settlement.MarketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusClosed {
		return fmt.Errorf("memory: settle market %s: %w", settlement.MarketID, domain.ErrInvalidState)
	}

	stakesByID := make(map[string]*domain.Stake)
	for _, st := range s.stakes[settlement.MarketID] {
		stakesByID[st.ID] = st
	}
	for _, p := range settlement.Payouts {
		if _, ok := stakesByID[p.StakeID]; !ok {
			return fmt.Errorf("memory: settle market %s: stake %s: %w",
				settlement.MarketID, p.StakeID, domain.ErrNotFound)
		}
	}

	s.accountMu.Lock()
	defer s.accountMu.Unlock()
	for _, p := range settlement.Payouts {
		if _, ok := s.accounts[p.AccountID]; !ok {
			return fmt.Errorf("memory: settle market %s: account %s: %w",
				settlement.MarketID, p.AccountID, domain.ErrNotFound)
		}
	}

	// All preconditions hold; now mutate.
	for _, p := range settlement.Payouts {
		stakesByID[p.StakeID].Reward = cloneBig(p.Reward)
		s.accounts[p.AccountID].Balance.Add(s.accounts[p.AccountID].Balance, p.Reward)
	}
	correct := settlement.CorrectOptionID
	m.CorrectOptionID = &correct
	m.Status = domain.MarketStatusSettled
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

// Log appends an audit entry.
func (s *Store) Log(ctx context.Context, event string, detail map[string]any) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	s.auditSeq++
	s.audit = append(s.audit, domain.AuditEntry{
		ID:        s.auditSeq,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// ListAudit returns audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	entries := make([]domain.AuditEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		entries = append(entries, s.audit[i])
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}
