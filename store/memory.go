package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"wingo-engine/models"
)

// MemoryStore is an in-process Store. Transactions are serialized by a
// single lock and their writes are staged until fn returns nil, so an
// aborted transaction leaves no trace.
type MemoryStore struct {
	mu sync.Mutex

	clock func() time.Time

	rounds   map[string]models.Round
	counters map[string]models.PeriodCounter
	accounts map[string]models.WalletAccount
	wagers   map[string]models.Wager
	ledger   []models.LedgerEntry
	history  map[string]models.HistoryRecord

	historyErr error
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:    func() time.Time { return time.Now().UTC() },
		rounds:   make(map[string]models.Round),
		counters: make(map[string]models.PeriodCounter),
		accounts: make(map[string]models.WalletAccount),
		wagers:   make(map[string]models.Wager),
		history:  make(map[string]models.HistoryRecord),
	}
}

// SetClock replaces the store's notion of server time.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// SetHistoryError makes PutHistory and RecentHistory fail with err until
// reset with nil.
func (s *MemoryStore) SetHistoryError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyErr = err
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		s:        s,
		now:      s.clock(),
		rounds:   make(map[string]models.Round),
		counters: make(map[string]models.PeriodCounter),
		accounts: make(map[string]models.WalletAccount),
		wagers:   make(map[string]models.Wager),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for k, v := range tx.rounds {
		s.rounds[k] = v
	}
	for k, v := range tx.counters {
		s.counters[k] = v
	}
	for k, v := range tx.accounts {
		s.accounts[k] = v
	}
	for k, v := range tx.wagers {
		s.wagers[k] = v
	}
	s.ledger = append(s.ledger, tx.ledger...)
	return nil
}

func (s *MemoryStore) Now(ctx context.Context) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock()
}

func (s *MemoryStore) GetRound(ctx context.Context, mode string) (models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[mode]
	if !ok {
		return models.Round{}, ErrNotFound
	}
	return cloneRound(round), nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, accountID string) (models.WalletAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return models.WalletAccount{}, ErrNotFound
	}
	return account, nil
}

func (s *MemoryStore) ListWagers(ctx context.Context, mode, periodID string) ([]models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Wager
	for _, w := range s.wagers {
		if w.Mode == mode && w.PeriodID == periodID {
			out = append(out, w)
		}
	}
	sortWagers(out)
	return out, nil
}

func (s *MemoryStore) ListWagersByAccount(ctx context.Context, accountID string, limit int) ([]models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Wager
	for _, w := range s.wagers {
		if w.AccountID == accountID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListLedger(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].AccountID != accountID {
			continue
		}
		out = append(out, s.ledger[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) PutHistory(ctx context.Context, rec models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.historyErr != nil {
		return s.historyErr
	}
	s.history[rec.ID] = rec
	return nil
}

func (s *MemoryStore) RecentHistory(ctx context.Context, mode string, limit int) ([]models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.historyErr != nil {
		return nil, s.historyErr
	}
	var out []models.HistoryRecord
	for _, rec := range s.history {
		if rec.Mode == mode {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResolvedAt.Equal(out[j].ResolvedAt) {
			return out[i].PeriodID > out[j].PeriodID
		}
		return out[i].ResolvedAt.After(out[j].ResolvedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memoryTx stages writes; reads see staged values first.
type memoryTx struct {
	s   *MemoryStore
	now time.Time

	rounds   map[string]models.Round
	counters map[string]models.PeriodCounter
	accounts map[string]models.WalletAccount
	wagers   map[string]models.Wager
	ledger   []models.LedgerEntry
}

func (tx *memoryTx) Now() time.Time {
	return tx.now
}

func (tx *memoryTx) GetRound(mode string) (models.Round, error) {
	if r, ok := tx.rounds[mode]; ok {
		return cloneRound(r), nil
	}
	if r, ok := tx.s.rounds[mode]; ok {
		return cloneRound(r), nil
	}
	return models.Round{}, ErrNotFound
}

func (tx *memoryTx) PutRound(round models.Round) error {
	tx.rounds[round.Mode] = cloneRound(round)
	return nil
}

func (tx *memoryTx) GetCounter(mode string) (models.PeriodCounter, error) {
	if c, ok := tx.counters[mode]; ok {
		return c, nil
	}
	if c, ok := tx.s.counters[mode]; ok {
		return c, nil
	}
	return models.PeriodCounter{}, ErrNotFound
}

func (tx *memoryTx) PutCounter(counter models.PeriodCounter) error {
	tx.counters[counter.Mode] = counter
	return nil
}

func (tx *memoryTx) GetAccount(accountID string) (models.WalletAccount, error) {
	if a, ok := tx.accounts[accountID]; ok {
		return a, nil
	}
	if a, ok := tx.s.accounts[accountID]; ok {
		return a, nil
	}
	return models.WalletAccount{}, ErrNotFound
}

func (tx *memoryTx) PutAccount(account models.WalletAccount) error {
	tx.accounts[account.AccountID] = account
	return nil
}

func (tx *memoryTx) AppendLedger(entry models.LedgerEntry) error {
	tx.ledger = append(tx.ledger, entry)
	return nil
}

func (tx *memoryTx) GetWager(id string) (models.Wager, error) {
	if w, ok := tx.wagers[id]; ok {
		return w, nil
	}
	if w, ok := tx.s.wagers[id]; ok {
		return w, nil
	}
	return models.Wager{}, ErrNotFound
}

func (tx *memoryTx) PutWager(wager models.Wager) error {
	tx.wagers[wager.ID] = wager
	return nil
}

func (tx *memoryTx) ListPendingWagers(mode, periodID string) ([]models.Wager, error) {
	merged := make(map[string]models.Wager)
	for id, w := range tx.s.wagers {
		merged[id] = w
	}
	for id, w := range tx.wagers {
		merged[id] = w
	}

	var out []models.Wager
	for _, w := range merged {
		if w.Mode == mode && w.PeriodID == periodID && w.Status == models.WagerPending {
			out = append(out, w)
		}
	}
	sortWagers(out)
	return out, nil
}

func sortWagers(ws []models.Wager) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].CreatedAt.Equal(ws[j].CreatedAt) {
			return ws[i].ID < ws[j].ID
		}
		return ws[i].CreatedAt.Before(ws[j].CreatedAt)
	})
}

func cloneRound(r models.Round) models.Round {
	if r.OutcomeColors != nil {
		r.OutcomeColors = append([]models.Color(nil), r.OutcomeColors...)
	}
	if r.SettlementStats != nil {
		stats := *r.SettlementStats
		r.SettlementStats = &stats
	}
	return r
}
