package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"wingo-engine/models"
	"wingo-engine/store"
)

const (
	testMode        = "test"
	testWelcome     = 1000
	testMinStake    = 10
	testMaxStake    = 10000
	testLockWindow  = 5 * time.Second
	testDuration    = 30 * time.Second
	testGuestPlayer = GuestPrefix + "alice"
)

// 12:00 UTC is 17:30 in Asia/Kolkata, same calendar date.
var testStart = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *manualClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedOutcomes struct {
	mu    sync.Mutex
	digit int
	calls int
}

func (f *fixedOutcomes) Generate(ctx context.Context, mode string) models.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return models.OutcomeForDigit(f.digit)
}

type recordingObserver struct {
	mu     sync.Mutex
	rounds []models.Round
}

func (o *recordingObserver) RoundChanged(ctx context.Context, round models.Round) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rounds = append(o.rounds, round)
}

func (o *recordingObserver) last() models.Round {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rounds[len(o.rounds)-1]
}

var errWriteConflict = errors.New("write conflict")

// retryingStore makes every transaction body run twice, the way a store
// retries after a write conflict: the first attempt is thrown away and the
// second one commits. A hook set with interleave runs once between the two
// attempts of the next transaction, standing in for a concurrent writer.
type retryingStore struct {
	*store.MemoryStore

	mu       sync.Mutex
	between  func()
	attempts int
}

func (s *retryingStore) interleave(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.between = fn
}

func (s *retryingStore) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.MemoryStore.RunInTransaction(ctx, func(tx store.Tx) error {
		s.attempt()
		if err := fn(tx); err != nil {
			return err
		}
		return errWriteConflict
	})
	if !errors.Is(err, errWriteConflict) {
		return err
	}

	s.mu.Lock()
	between := s.between
	s.between = nil
	s.mu.Unlock()
	if between != nil {
		between()
	}

	return s.MemoryStore.RunInTransaction(ctx, func(tx store.Tx) error {
		s.attempt()
		return fn(tx)
	})
}

func (s *retryingStore) attempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

type fixture struct {
	ctx        context.Context
	store      *store.MemoryStore
	retrying   *retryingStore
	clock      *manualClock
	modes      ModeSet
	ledger     *WalletLedger
	periods    *PeriodGenerator
	settlement *SettlementEngine
	outcomes   *fixedOutcomes
	observer   *recordingObserver
	lifecycle  *RoundLifecycle
	bets       *BetPlacement
	log        *logrus.Logger
	hook       *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture(t, func(ms *store.MemoryStore) store.Store { return ms })
}

// newRetryingFixture wires every component to a retryingStore.
func newRetryingFixture(t *testing.T) *fixture {
	t.Helper()
	var rs *retryingStore
	f := buildFixture(t, func(ms *store.MemoryStore) store.Store {
		rs = &retryingStore{MemoryStore: ms}
		return rs
	})
	f.retrying = rs
	return f
}

func buildFixture(t *testing.T, wrap func(*store.MemoryStore) store.Store) *fixture {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	clock := &manualClock{now: testStart}
	ms := store.NewMemoryStore()
	ms.SetClock(clock.Now)
	st := wrap(ms)

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	modes := NewModeSet([]models.Mode{
		{Name: testMode, Code: "X", Duration: testDuration, LockWindow: testLockWindow},
		{Name: "other", Code: "Y", Duration: time.Minute, LockWindow: testLockWindow},
	})

	f := &fixture{
		ctx:      context.Background(),
		store:    ms,
		clock:    clock,
		modes:    modes,
		outcomes: &fixedOutcomes{digit: 5},
		observer: &recordingObserver{},
		log:      log,
		hook:     hook,
	}
	f.ledger = NewWalletLedger(st, testWelcome, log)
	f.periods = NewPeriodGenerator(st, modes, loc)
	f.settlement = NewSettlementEngine(st, f.ledger, log)
	f.lifecycle = NewRoundLifecycle(LifecycleConfig{
		Store:      st,
		Modes:      modes,
		Periods:    f.periods,
		Outcomes:   f.outcomes,
		Settlement: f.settlement,
		Observer:   f.observer,
		Logger:     log,
	})
	f.bets = NewBetPlacement(st, modes, f.ledger, testMinStake, testMaxStake, log)
	return f
}

func (f *fixture) round(t *testing.T) models.Round {
	t.Helper()
	r, err := f.store.GetRound(f.ctx, testMode)
	require.NoError(t, err)
	return r
}

func (f *fixture) putRound(t *testing.T, r models.Round) {
	t.Helper()
	require.NoError(t, f.store.RunInTransaction(f.ctx, func(tx store.Tx) error {
		return tx.PutRound(r)
	}))
}

func (f *fixture) advance(t *testing.T) Transition {
	t.Helper()
	tr, err := f.lifecycle.Advance(f.ctx, testMode)
	require.NoError(t, err)
	return tr
}

func (f *fixture) bet(t *testing.T, account string, kind models.BetKind, value string, stake int64) models.Wager {
	t.Helper()
	w, _, err := f.bets.PlaceBet(f.ctx, BetRequest{
		AccountID: account,
		Mode:      testMode,
		Kind:      kind,
		Value:     value,
		Stake:     stake,
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(f.ctx, account)
	require.NoError(t, err)
	return b
}

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
