package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wingo-engine/metrics"
	"wingo-engine/models"
	"wingo-engine/store"
)

// DefaultStuckAfter is how far past its end a round may drift before it is
// treated as stuck and force-resolved.
const DefaultStuckAfter = 30 * time.Second

// Transition is what a single Advance call did to a mode's round.
type Transition string

const (
	TransitionNone      Transition = "none"
	TransitionOpened    Transition = "opened"
	TransitionLocked    Transition = "locked"
	TransitionResolved  Transition = "resolved"
	TransitionRecovered Transition = "recovered"
)

// OutcomeSource draws the outcome of a period.
type OutcomeSource interface {
	Generate(ctx context.Context, mode string) models.Outcome
}

// RoundObserver is told about the round document after every transition.
type RoundObserver interface {
	RoundChanged(ctx context.Context, round models.Round)
}

// RoundLifecycle owns the round document of each mode and moves it through
// BETTING -> LOCKED -> RESOLVED -> next BETTING. Every transition re-reads
// the round inside its transaction and no-ops if another writer got there
// first, so Advance is safe to call repeatedly and from racing processes.
type RoundLifecycle struct {
	store      store.Store
	modes      ModeSet
	periods    *PeriodGenerator
	outcomes   OutcomeSource
	settlement *SettlementEngine
	observer   RoundObserver
	stuckAfter time.Duration
	log        logrus.FieldLogger
}

// LifecycleConfig wires a RoundLifecycle. Observer is optional and
// StuckAfter defaults to DefaultStuckAfter.
type LifecycleConfig struct {
	Store      store.Store
	Modes      ModeSet
	Periods    *PeriodGenerator
	Outcomes   OutcomeSource
	Settlement *SettlementEngine
	Observer   RoundObserver
	StuckAfter time.Duration
	Logger     logrus.FieldLogger
}

// NewRoundLifecycle builds a lifecycle from cfg.
func NewRoundLifecycle(cfg LifecycleConfig) *RoundLifecycle {
	stuckAfter := cfg.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckAfter
	}
	return &RoundLifecycle{
		store:      cfg.Store,
		modes:      cfg.Modes,
		periods:    cfg.Periods,
		outcomes:   cfg.Outcomes,
		settlement: cfg.Settlement,
		observer:   cfg.Observer,
		stuckAfter: stuckAfter,
		log:        cfg.Logger,
	}
}

// Advance evaluates the round of mode once and performs at most one step of
// the state machine, except for stuck rounds which are recovered in full.
func (l *RoundLifecycle) Advance(ctx context.Context, modeName string) (Transition, error) {
	mode, err := l.modes.Lookup(modeName)
	if err != nil {
		return TransitionNone, err
	}

	now := l.store.Now(ctx)
	round, err := l.store.GetRound(ctx, mode.Name)
	if errors.Is(err, store.ErrNotFound) {
		return l.open(ctx, mode, "")
	}
	if err != nil {
		return TransitionNone, fmt.Errorf("read round: %w", err)
	}

	remaining := round.TimeRemaining(now)
	stuck := remaining <= -l.stuckAfter
	log := l.log.WithField("mode", mode.Name).WithField("period_id", round.PeriodID)

	switch round.Status {
	case models.RoundBetting, models.RoundLocked:
		if stuck {
			log.WithField("overdue", -remaining).WithField("status", round.Status).Warn("round stuck, forcing resolution")
			resolved, err := l.resolve(ctx, mode, round)
			if err != nil || !resolved {
				return TransitionNone, err
			}
			return l.record(mode, TransitionRecovered), nil
		}

		if round.Status == models.RoundBetting {
			if remaining > mode.LockWindow {
				return TransitionNone, nil
			}
			locked, err := l.lock(ctx, mode, round.PeriodID)
			if err != nil || !locked {
				return TransitionNone, err
			}
			if remaining > 0 {
				return l.record(mode, TransitionLocked), nil
			}
		}

		if remaining > 0 {
			return TransitionNone, nil
		}
		resolved, err := l.resolve(ctx, mode, round)
		if err != nil || !resolved {
			return TransitionNone, err
		}
		return l.record(mode, TransitionResolved), nil

	case models.RoundResolved:
		if round.SettlementDone {
			return l.open(ctx, mode, round.PeriodID)
		}

		outcome, _ := round.Outcome()
		_, err := l.settlement.Settle(ctx, mode.Name, round.PeriodID, outcome)
		if !stuck {
			if err != nil {
				return TransitionNone, err
			}
			l.notify(ctx, mode.Name)
			return l.record(mode, TransitionResolved), nil
		}

		if err != nil {
			log.WithError(err).Error("settlement of stuck round failed, closing period")
			if err := l.settlement.ForceDone(ctx, mode.Name, round.PeriodID); err != nil {
				return TransitionNone, err
			}
		}
		if _, err := l.open(ctx, mode, round.PeriodID); err != nil {
			return TransitionNone, err
		}
		return l.record(mode, TransitionRecovered), nil

	default:
		return TransitionNone, fmt.Errorf("round %s has unknown status %q", round.PeriodID, round.Status)
	}
}

// open creates the next BETTING round, replacing prevPeriodID. It no-ops if
// the current round is no longer prevPeriodID or is still live.
func (l *RoundLifecycle) open(ctx context.Context, mode models.Mode, prevPeriodID string) (Transition, error) {
	var created models.Round
	opened := false

	err := l.store.RunInTransaction(ctx, func(tx store.Tx) error {
		opened = false
		current, err := tx.GetRound(mode.Name)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("read round: %w", err)
		case current.PeriodID != prevPeriodID:
			return nil
		case current.Status != models.RoundResolved || !current.SettlementDone:
			return nil
		}

		periodID, err := l.periods.NextTx(tx, mode)
		if err != nil {
			return err
		}
		now := tx.Now()
		created = models.Round{
			Mode:         mode.Name,
			PeriodID:     periodID,
			Status:       models.RoundBetting,
			RoundStartAt: now,
			RoundEndAt:   now.Add(mode.Duration),
			OutcomeDigit: models.NoOutcome,
			UpdatedAt:    now,
		}
		if err := tx.PutRound(created); err != nil {
			return fmt.Errorf("write round: %w", err)
		}
		opened = true
		return nil
	})
	if err != nil {
		return TransitionNone, fmt.Errorf("open round: %w", err)
	}
	if !opened {
		return TransitionNone, nil
	}

	l.log.WithField("mode", mode.Name).
		WithField("period_id", created.PeriodID).
		WithField("ends_at", created.RoundEndAt).
		Info("round opened")
	l.observe(ctx, created)
	return l.record(mode, TransitionOpened), nil
}

func (l *RoundLifecycle) lock(ctx context.Context, mode models.Mode, periodID string) (bool, error) {
	locked := false
	err := l.store.RunInTransaction(ctx, func(tx store.Tx) error {
		locked = false
		round, err := tx.GetRound(mode.Name)
		if err != nil {
			return fmt.Errorf("read round: %w", err)
		}
		if round.PeriodID != periodID || round.Status != models.RoundBetting {
			return nil
		}
		round.Status = models.RoundLocked
		round.UpdatedAt = tx.Now()
		if err := tx.PutRound(round); err != nil {
			return fmt.Errorf("write round: %w", err)
		}
		locked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lock round: %w", err)
	}
	if locked {
		l.log.WithField("mode", mode.Name).WithField("period_id", periodID).Debug("round locked")
		l.notify(ctx, mode.Name)
	}
	return locked, nil
}

// resolve writes the outcome only while the period is current and not yet
// settled, then settles it. A period already resolved by another writer
// keeps its stored outcome.
func (l *RoundLifecycle) resolve(ctx context.Context, mode models.Mode, round models.Round) (bool, error) {
	generated := l.outcomes.Generate(ctx, mode.Name)

	var outcome models.Outcome
	proceed := false
	err := l.store.RunInTransaction(ctx, func(tx store.Tx) error {
		proceed = false
		current, err := tx.GetRound(mode.Name)
		if err != nil {
			return fmt.Errorf("read round: %w", err)
		}
		if current.PeriodID != round.PeriodID || current.SettlementDone {
			return nil
		}
		if stored, ok := current.Outcome(); ok && current.Status == models.RoundResolved {
			outcome = stored
			proceed = true
			return nil
		}

		current.Status = models.RoundResolved
		current.OutcomeDigit = generated.Digit
		current.OutcomeColors = generated.Colors
		current.OutcomeSize = generated.Size
		current.UpdatedAt = tx.Now()
		if err := tx.PutRound(current); err != nil {
			return fmt.Errorf("write round: %w", err)
		}
		outcome = generated
		proceed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("resolve round: %w", err)
	}
	if !proceed {
		return false, nil
	}
	l.notify(ctx, mode.Name)

	if _, err := l.settlement.Settle(ctx, mode.Name, round.PeriodID, outcome); err != nil {
		return true, fmt.Errorf("settle %s: %w", round.PeriodID, err)
	}
	l.notify(ctx, mode.Name)
	return true, nil
}

func (l *RoundLifecycle) notify(ctx context.Context, mode string) {
	if l.observer == nil {
		return
	}
	round, err := l.store.GetRound(ctx, mode)
	if err != nil {
		l.log.WithField("mode", mode).WithError(err).Debug("skip round notification")
		return
	}
	l.observer.RoundChanged(ctx, round)
}

func (l *RoundLifecycle) observe(ctx context.Context, round models.Round) {
	if l.observer != nil {
		l.observer.RoundChanged(ctx, round)
	}
}

func (l *RoundLifecycle) record(mode models.Mode, t Transition) Transition {
	metrics.RecordTransition(mode.Name, string(t))
	return t
}
