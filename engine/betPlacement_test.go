package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingo-engine/models"
	"wingo-engine/store"
)

func TestPlaceBet(t *testing.T) {
	f := newFixture(t)
	f.advance(t)

	w, balance, err := f.bets.PlaceBet(f.ctx, BetRequest{
		AccountID: testGuestPlayer,
		Mode:      testMode,
		Kind:      "color",
		Value:     " violet ",
		Stake:     100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(testWelcome-100), balance)
	assert.Equal(t, models.BetColor, w.BetKind)
	assert.Equal(t, "VIOLET", w.BetValue)
	assert.Equal(t, models.WagerPending, w.Status)
	assert.Equal(t, "X-20260110-001", w.PeriodID)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, 1, f.round(t).WagerCount)

	entries, err := f.store.ListLedger(f.ctx, testGuestPlayer, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerDebit, entries[0].Type)
	assert.Equal(t, w.ID, entries[0].RelatedWagerID)
	assert.Equal(t, w.PeriodID, entries[0].RelatedPeriodID)
}

func TestPlaceBetRejectsBeforeTouchingLedger(t *testing.T) {
	f := newFixture(t)
	f.advance(t)

	tests := []struct {
		name string
		req  BetRequest
		want error
	}{
		{"unknown mode", BetRequest{Mode: "nope", Kind: models.BetColor, Value: "RED", Stake: 100}, ErrInvalidMode},
		{"unknown kind", BetRequest{Mode: testMode, Kind: "PARITY", Value: "ODD", Stake: 100}, ErrInvalidBetKind},
		{"bad colour", BetRequest{Mode: testMode, Kind: models.BetColor, Value: "BLUE", Stake: 100}, ErrInvalidBetValue},
		{"bad number", BetRequest{Mode: testMode, Kind: models.BetNumber, Value: "10", Stake: 100}, ErrInvalidBetValue},
		{"signed number", BetRequest{Mode: testMode, Kind: models.BetNumber, Value: "+5", Stake: 100}, ErrInvalidBetValue},
		{"bad size", BetRequest{Mode: testMode, Kind: models.BetSize, Value: "MEDIUM", Stake: 100}, ErrInvalidBetValue},
		{"stake too low", BetRequest{Mode: testMode, Kind: models.BetSize, Value: "BIG", Stake: testMinStake - 1}, ErrInvalidStake},
		{"stake too high", BetRequest{Mode: testMode, Kind: models.BetSize, Value: "BIG", Stake: testMaxStake + 1}, ErrInvalidStake},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.AccountID = testGuestPlayer
			_, _, err := f.bets.PlaceBet(f.ctx, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := f.store.GetAccount(f.ctx, testGuestPlayer)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestPlaceBetClosedInsideLockWindow(t *testing.T) {
	f := newFixture(t)
	f.advance(t)

	// still BETTING but only 5s left
	f.clock.Set(testStart.Add(testDuration - testLockWindow))
	_, _, err := f.bets.PlaceBet(f.ctx, BetRequest{AccountID: testGuestPlayer, Mode: testMode, Kind: models.BetSize, Value: "BIG", Stake: 100})
	assert.True(t, errors.Is(err, ErrBettingClosed))

	f.clock.Set(testStart.Add(26 * time.Second))
	f.advance(t)
	_, _, err = f.bets.PlaceBet(f.ctx, BetRequest{AccountID: testGuestPlayer, Mode: testMode, Kind: models.BetSize, Value: "BIG", Stake: 100})
	assert.True(t, errors.Is(err, ErrBettingClosed))

	_, err = f.store.GetAccount(f.ctx, testGuestPlayer)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestPlaceBetRetryUsesCommitTime(t *testing.T) {
	f := newRetryingFixture(t)
	f.advance(t)

	f.clock.Set(testStart.Add(2 * time.Second))
	f.retrying.interleave(func() {
		// the retry happens with only the lock window left
		f.clock.Set(testStart.Add(testDuration - testLockWindow))
	})
	_, _, err := f.bets.PlaceBet(f.ctx, BetRequest{AccountID: testGuestPlayer, Mode: testMode, Kind: models.BetSize, Value: "BIG", Stake: 100})
	assert.True(t, errors.Is(err, ErrBettingClosed), "got %v", err)

	_, err = f.store.GetAccount(f.ctx, testGuestPlayer)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, 0, f.round(t).WagerCount)
}

func TestPlaceBetRetryKeepsOneDebit(t *testing.T) {
	f := newRetryingFixture(t)
	f.advance(t)

	f.clock.Set(testStart.Add(time.Second))
	w, balance, err := f.bets.PlaceBet(f.ctx, BetRequest{AccountID: testGuestPlayer, Mode: testMode, Kind: models.BetNumber, Value: "5", Stake: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(testWelcome-100), balance)
	assert.Equal(t, testStart.Add(time.Second), w.CreatedAt)

	entries, err := f.store.ListLedger(f.ctx, testGuestPlayer, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	wagers, err := f.store.ListWagers(f.ctx, testMode, w.PeriodID)
	require.NoError(t, err)
	assert.Len(t, wagers, 1)
	assert.Equal(t, 1, f.round(t).WagerCount)
}

func TestPlaceBetWithoutRound(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.bets.PlaceBet(f.ctx, BetRequest{AccountID: testGuestPlayer, Mode: testMode, Kind: models.BetSize, Value: "BIG", Stake: 100})
	assert.True(t, errors.Is(err, ErrBettingClosed))
}

func TestPlaceBetInsufficientFundsCreatesNoWager(t *testing.T) {
	f := newFixture(t)
	f.advance(t)

	_, _, err := f.bets.PlaceBet(f.ctx, BetRequest{AccountID: "player-1", Mode: testMode, Kind: models.BetNumber, Value: "3", Stake: 100})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	wagers, err := f.store.ListWagers(f.ctx, testMode, f.round(t).PeriodID)
	require.NoError(t, err)
	assert.Empty(t, wagers)
}
