package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wingo-engine/metrics"
	"wingo-engine/models"
	"wingo-engine/store"
)

// BetRequest is a wager as submitted by a player.
type BetRequest struct {
	AccountID string
	Mode      string
	Kind      models.BetKind
	Value     string
	Stake     int64
}

// BetPlacement accepts wagers into the current period of a mode. The stake
// debit, the wager and the round's wager count are written in one
// transaction.
type BetPlacement struct {
	store    store.Store
	modes    ModeSet
	ledger   *WalletLedger
	minStake int64
	maxStake int64
	log      logrus.FieldLogger
}

func NewBetPlacement(st store.Store, modes ModeSet, ledger *WalletLedger, minStake, maxStake int64, log logrus.FieldLogger) *BetPlacement {
	return &BetPlacement{
		store:    st,
		modes:    modes,
		ledger:   ledger,
		minStake: minStake,
		maxStake: maxStake,
		log:      log,
	}
}

// PlaceBet validates req, debits the stake and records a PENDING wager
// against the current period. It returns the wager and the new balance.
func (b *BetPlacement) PlaceBet(ctx context.Context, req BetRequest) (models.Wager, int64, error) {
	mode, err := b.modes.Lookup(req.Mode)
	if err != nil {
		return models.Wager{}, 0, err
	}
	kind, value, err := normalizeBet(req.Kind, req.Value)
	if err != nil {
		return models.Wager{}, 0, err
	}
	if req.Stake < b.minStake || (b.maxStake > 0 && req.Stake > b.maxStake) {
		return models.Wager{}, 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidStake, req.Stake, b.minStake, b.maxStake)
	}

	var (
		wager   models.Wager
		balance int64
	)
	err = b.store.RunInTransaction(ctx, func(tx store.Tx) error {
		now := tx.Now()
		round, err := tx.GetRound(mode.Name)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no open round", ErrBettingClosed)
		}
		if err != nil {
			return fmt.Errorf("read round: %w", err)
		}
		if round.Status != models.RoundBetting || round.TimeRemaining(now) <= mode.LockWindow {
			return fmt.Errorf("%w: period %s", ErrBettingClosed, round.PeriodID)
		}

		wager = models.Wager{
			ID:        uuid.New().String(),
			AccountID: req.AccountID,
			Mode:      mode.Name,
			PeriodID:  round.PeriodID,
			BetKind:   kind,
			BetValue:  value,
			Stake:     req.Stake,
			Status:    models.WagerPending,
			CreatedAt: now,
		}
		ref := LedgerRef{PeriodID: round.PeriodID, WagerID: wager.ID}
		balance, err = b.ledger.DebitTx(tx, req.AccountID, req.Stake, ref, now)
		if err != nil {
			return err
		}
		if err := tx.PutWager(wager); err != nil {
			return err
		}

		// Writing the round makes this transaction conflict with a
		// concurrent lock or resolve, so a wager can never land after
		// settlement has listed the period's pending wagers.
		round.WagerCount++
		if err := tx.PutRound(round); err != nil {
			return fmt.Errorf("write round: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Wager{}, 0, err
	}

	metrics.RecordBetPlaced(mode.Name)
	b.log.WithField("account_id", wager.AccountID).
		WithField("wager_id", wager.ID).
		WithField("period_id", wager.PeriodID).
		WithField("stake", wager.Stake).
		Debug("wager placed")
	return wager, balance, nil
}

func normalizeBet(kind models.BetKind, value string) (models.BetKind, string, error) {
	kind = models.BetKind(strings.ToUpper(strings.TrimSpace(string(kind))))
	value = strings.ToUpper(strings.TrimSpace(value))

	switch kind {
	case models.BetColor:
		switch models.Color(value) {
		case models.ColorRed, models.ColorGreen, models.ColorViolet:
			return kind, value, nil
		}
	case models.BetNumber:
		if n, err := strconv.Atoi(value); err == nil && n >= 0 && n <= 9 && len(value) == 1 {
			return kind, value, nil
		}
	case models.BetSize:
		switch models.Size(value) {
		case models.SizeBig, models.SizeSmall:
			return kind, value, nil
		}
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidBetKind, kind)
	}
	return "", "", fmt.Errorf("%w: %q for %s", ErrInvalidBetValue, value, kind)
}
