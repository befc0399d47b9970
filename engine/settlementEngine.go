package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"wingo-engine/metrics"
	"wingo-engine/models"
	"wingo-engine/store"
)

var (
	numberMultiplier      = decimal.NewFromInt(8)
	sizeMultiplier        = decimal.RequireFromString("1.9")
	singleColorMultiplier = decimal.RequireFromString("1.9")
	violetMultiplier      = decimal.RequireFromString("1.5")
)

// Evaluate decides a wager against an outcome and returns the payout,
// rounded down to whole units. Losing wagers pay 0.
func Evaluate(w models.Wager, o models.Outcome) (bool, int64) {
	var won bool
	var multiplier decimal.Decimal

	switch w.BetKind {
	case models.BetNumber:
		won = w.BetValue == strconv.Itoa(o.Digit)
		multiplier = numberMultiplier
	case models.BetSize:
		won = models.Size(w.BetValue) == o.Size
		multiplier = sizeMultiplier
	case models.BetColor:
		won = o.HasColor(models.Color(w.BetValue))
		multiplier = singleColorMultiplier
		if o.IsDualColor() {
			multiplier = violetMultiplier
		}
	}
	if !won {
		return false, 0
	}
	return true, decimal.NewFromInt(w.Stake).Mul(multiplier).Floor().IntPart()
}

// SettlementEngine marks the pending wagers of a period won or lost and
// credits winners. Each wager is settled in its own transaction that
// re-checks PENDING, and the whole call is gated on Round.SettlementDone,
// so repeated calls for one period credit every winner exactly once.
type SettlementEngine struct {
	store  store.Store
	ledger *WalletLedger
	log    logrus.FieldLogger
}

// NewSettlementEngine returns an engine crediting winners through ledger.
func NewSettlementEngine(st store.Store, ledger *WalletLedger, log logrus.FieldLogger) *SettlementEngine {
	return &SettlementEngine{store: st, ledger: ledger, log: log}
}

// Settle settles every pending wager of (mode, periodID) against outcome and
// marks the round's settlement done. If the round is already settled it
// returns the stored stats without touching any wager.
func (e *SettlementEngine) Settle(ctx context.Context, mode, periodID string, outcome models.Outcome) (models.SettlementStats, error) {
	log := e.log.WithField("mode", mode).WithField("period_id", periodID)

	round, err := e.store.GetRound(ctx, mode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.SettlementStats{}, fmt.Errorf("read round: %w", err)
	}
	if err == nil && round.PeriodID == periodID && round.SettlementDone {
		log.Debug("period already settled")
		if round.SettlementStats != nil {
			return *round.SettlementStats, nil
		}
		return models.SettlementStats{}, nil
	}

	var pending []models.Wager
	err = e.store.RunInTransaction(ctx, func(tx store.Tx) error {
		var err error
		pending, err = tx.ListPendingWagers(mode, periodID)
		return err
	})
	if err != nil {
		return models.SettlementStats{}, fmt.Errorf("list pending wagers: %w", err)
	}

	for _, w := range pending {
		if err := e.settleWager(ctx, w.ID, periodID, outcome); err != nil {
			return models.SettlementStats{}, fmt.Errorf("settle wager %s: %w", w.ID, err)
		}
	}

	settled, err := e.store.ListWagers(ctx, mode, periodID)
	if err != nil {
		return models.SettlementStats{}, fmt.Errorf("list settled wagers: %w", err)
	}
	stats := aggregate(settled)

	if err := e.markDone(ctx, mode, periodID, &stats); err != nil {
		return stats, err
	}

	now := e.store.Now(ctx)
	rec := models.HistoryRecord{
		ID:         models.HistoryKey(mode, periodID),
		Mode:       mode,
		PeriodID:   periodID,
		Outcome:    outcome,
		Stats:      stats,
		ResolvedAt: now,
	}
	if err := e.store.PutHistory(ctx, rec); err != nil {
		log.WithError(err).Warn("failed to write round history")
	}

	log.WithField("digit", outcome.Digit).
		WithField("wagers", stats.TotalWagers).
		WithField("winners", stats.Winners).
		WithField("payout", stats.TotalPayout).
		Info("period settled")
	return stats, nil
}

// ForceDone marks the period settled without touching wagers. It is the
// last resort of stuck recovery when settlement keeps failing.
func (e *SettlementEngine) ForceDone(ctx context.Context, mode, periodID string) error {
	return e.markDone(ctx, mode, periodID, nil)
}

func (e *SettlementEngine) settleWager(ctx context.Context, wagerID, periodID string, outcome models.Outcome) error {
	var (
		won     bool
		payout  int64
		settled bool
		mode    string
	)

	err := e.store.RunInTransaction(ctx, func(tx store.Tx) error {
		settled = false
		now := tx.Now()
		w, err := tx.GetWager(wagerID)
		if err != nil {
			return fmt.Errorf("read wager: %w", err)
		}
		if w.Status != models.WagerPending {
			return nil
		}

		won, payout = Evaluate(w, outcome)
		w.Status = models.WagerLost
		if won {
			w.Status = models.WagerWon
		}
		w.Payout = payout
		w.SettledAt = &now
		if err := tx.PutWager(w); err != nil {
			return fmt.Errorf("write wager: %w", err)
		}

		if payout > 0 {
			ref := LedgerRef{PeriodID: periodID, WagerID: w.ID}
			if _, err := e.ledger.CreditTx(tx, w.AccountID, payout, ref, now); err != nil {
				return fmt.Errorf("credit payout: %w", err)
			}
		}
		settled = true
		mode = w.Mode
		return nil
	})
	if err != nil {
		return err
	}
	if settled {
		metrics.RecordWagerSettled(mode, won, payout)
	}
	return nil
}

func (e *SettlementEngine) markDone(ctx context.Context, mode, periodID string, stats *models.SettlementStats) error {
	err := e.store.RunInTransaction(ctx, func(tx store.Tx) error {
		round, err := tx.GetRound(mode)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if round.PeriodID != periodID || round.SettlementDone {
			return nil
		}
		round.SettlementDone = true
		round.SettlementStats = stats
		round.UpdatedAt = tx.Now()
		return tx.PutRound(round)
	})
	if err != nil {
		return fmt.Errorf("mark settlement done: %w", err)
	}
	return nil
}

func aggregate(wagers []models.Wager) models.SettlementStats {
	var stats models.SettlementStats
	for _, w := range wagers {
		stats.TotalWagers++
		stats.TotalStake += w.Stake
		if w.Status == models.WagerWon {
			stats.Winners++
			stats.TotalPayout += w.Payout
		}
	}
	return stats
}
