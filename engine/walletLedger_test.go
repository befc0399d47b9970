package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingo-engine/models"
	"wingo-engine/store"
)

func TestGuestAccountOpensWithWelcomeCredit(t *testing.T) {
	f := newFixture(t)

	balance, err := f.ledger.Credit(f.ctx, testGuestPlayer, 50, LedgerRef{})
	require.NoError(t, err)
	assert.Equal(t, int64(testWelcome+50), balance)

	entries, err := f.store.ListLedger(f.ctx, testGuestPlayer, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	welcome := entries[1]
	assert.Equal(t, models.LedgerCredit, welcome.Type)
	assert.Equal(t, int64(testWelcome), welcome.Amount)
	assert.Equal(t, int64(0), welcome.BalanceBefore)
	assert.Equal(t, int64(testWelcome), welcome.BalanceAfter)
}

func TestRegularAccountOpensEmpty(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, int64(0), f.balance(t, "player-1"))
	_, err := f.ledger.Debit(f.ctx, "player-1", 1, LedgerRef{})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	_, err = f.store.GetAccount(f.ctx, "player-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDebitInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Credit(f.ctx, "player-1", 100, LedgerRef{})
	require.NoError(t, err)

	balance, err := f.ledger.Debit(f.ctx, "player-1", 101, LedgerRef{})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, int64(100), balance)
	assert.Equal(t, int64(100), f.balance(t, "player-1"))

	entries, err := f.store.ListLedger(f.ctx, "player-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Credit(f.ctx, "player-1", 0, LedgerRef{})
	assert.True(t, errors.Is(err, ErrInvalidAmount))
	_, err = f.ledger.Debit(f.ctx, "player-1", -5, LedgerRef{})
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestLedgerTracksWagerTotals(t *testing.T) {
	f := newFixture(t)
	ref := LedgerRef{PeriodID: "X-20260110-001", WagerID: "w-1"}

	_, err := f.ledger.Debit(f.ctx, testGuestPlayer, 100, ref)
	require.NoError(t, err)
	_, err = f.ledger.Credit(f.ctx, testGuestPlayer, 190, ref)
	require.NoError(t, err)

	account, err := f.store.GetAccount(f.ctx, testGuestPlayer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.TotalWagered)
	assert.Equal(t, int64(190), account.TotalWon)
	assert.Equal(t, int64(testWelcome+90), account.Balance)
}

// The balance always equals the sum of the account's ledger movements and
// every entry chains from the previous one.
func TestLedgerBalanceMatchesEntries(t *testing.T) {
	f := newFixture(t)
	rng := seededRand(42)

	for i := 0; i < 500; i++ {
		amount := rng.Int64N(300) + 1
		if rng.IntN(2) == 0 {
			_, err := f.ledger.Credit(f.ctx, testGuestPlayer, amount, LedgerRef{})
			require.NoError(t, err)
			continue
		}
		before := f.balance(t, testGuestPlayer)
		balance, err := f.ledger.Debit(f.ctx, testGuestPlayer, amount, LedgerRef{})
		if err != nil {
			require.True(t, errors.Is(err, ErrInsufficientFunds))
			require.Less(t, before, amount)
			assert.Equal(t, before, balance)
			assert.Equal(t, before, f.balance(t, testGuestPlayer))
			continue
		}
		assert.Equal(t, before-amount, balance)
	}

	entries, err := f.store.ListLedger(f.ctx, testGuestPlayer, 0)
	require.NoError(t, err)

	var sum int64
	prevAfter := int64(0)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		assert.Equal(t, prevAfter, e.BalanceBefore)
		switch e.Type {
		case models.LedgerCredit:
			sum += e.Amount
			assert.Equal(t, e.BalanceBefore+e.Amount, e.BalanceAfter)
		case models.LedgerDebit:
			sum -= e.Amount
			assert.Equal(t, e.BalanceBefore-e.Amount, e.BalanceAfter)
		}
		assert.GreaterOrEqual(t, e.BalanceAfter, int64(0))
		prevAfter = e.BalanceAfter
	}
	assert.Equal(t, sum, f.balance(t, testGuestPlayer))
}
