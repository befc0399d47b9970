package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wingo-engine/models"
	"wingo-engine/store"
)

const periodDateLayout = "20060102"

// PeriodGenerator allocates <Code>-<YYYYMMDD>-<NNN> period ids. The counter
// lives in the store and is only touched inside a transaction, so
// concurrent allocations for one mode are serialized by the store.
type PeriodGenerator struct {
	store store.Store
	modes ModeSet
	loc   *time.Location
}

func NewPeriodGenerator(st store.Store, modes ModeSet, loc *time.Location) *PeriodGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &PeriodGenerator{store: st, modes: modes, loc: loc}
}

// Next allocates the next period id of mode in its own transaction.
func (g *PeriodGenerator) Next(ctx context.Context, modeName string) (string, error) {
	mode, err := g.modes.Lookup(modeName)
	if err != nil {
		return "", err
	}

	var periodID string
	err = g.store.RunInTransaction(ctx, func(tx store.Tx) error {
		id, err := g.NextTx(tx, mode)
		periodID = id
		return err
	})
	if err != nil {
		return "", fmt.Errorf("allocate period for %s: %w", mode.Name, err)
	}
	return periodID, nil
}

// NextTx allocates the next period id inside tx, dated by the transaction's
// clock. The counter date never moves backwards: an attempt whose clock is
// behind the stored date keeps counting on the stored date.
func (g *PeriodGenerator) NextTx(tx store.Tx, mode models.Mode) (string, error) {
	today := tx.Now().In(g.loc).Format(periodDateLayout)

	counter, err := tx.GetCounter(mode.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		counter = models.PeriodCounter{Mode: mode.Name, LastDate: today}
	case err != nil:
		return "", fmt.Errorf("read period counter: %w", err)
	}

	// YYYYMMDD compares in date order
	switch {
	case today > counter.LastDate:
		counter.LastDate = today
		counter.Counter = 0
	case today < counter.LastDate:
		today = counter.LastDate
	}
	counter.Counter++

	if err := tx.PutCounter(counter); err != nil {
		return "", fmt.Errorf("write period counter: %w", err)
	}
	return FormatPeriodID(mode.Code, today, counter.Counter), nil
}

func FormatPeriodID(code, date string, n int) string {
	return fmt.Sprintf("%s-%s-%03d", code, date, n)
}
