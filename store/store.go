// Package store defines the persistence contract of the round engine and
// its MongoDB and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"wingo-engine/models"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrTxConflict is returned when a transaction could not commit because
	// of a concurrent writer and the store gave up retrying.
	ErrTxConflict = errors.New("transaction conflict")
)

// Store is the document store used by the engine. All mutations of rounds,
// counters, wallets and wagers happen inside RunInTransaction.
type Store interface {
	// RunInTransaction runs fn in a multi-document transaction with snapshot
	// isolation: two transactions conflict only if both write the same
	// document, so a transaction whose decision depends on a document must
	// also write it. fn may be called more than once when the store retries
	// a conflict, so it must not have side effects outside tx and must take
	// its timestamps from tx.Now. Returning an error aborts.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	// Now is the store's server-side timestamp.
	Now(ctx context.Context) time.Time

	GetRound(ctx context.Context, mode string) (models.Round, error)
	GetAccount(ctx context.Context, accountID string) (models.WalletAccount, error)
	ListWagers(ctx context.Context, mode, periodID string) ([]models.Wager, error)
	ListWagersByAccount(ctx context.Context, accountID string, limit int) ([]models.Wager, error)
	ListLedger(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error)

	// PutHistory upserts the history record keyed by its ID.
	PutHistory(ctx context.Context, rec models.HistoryRecord) error
	// RecentHistory returns the latest records of mode, newest first.
	RecentHistory(ctx context.Context, mode string, limit int) ([]models.HistoryRecord, error)
}

// Tx is the view of the store inside one transaction.
type Tx interface {
	// Now is the server time at the start of this attempt.
	Now() time.Time

	GetRound(mode string) (models.Round, error)
	PutRound(round models.Round) error

	GetCounter(mode string) (models.PeriodCounter, error)
	PutCounter(counter models.PeriodCounter) error

	GetAccount(accountID string) (models.WalletAccount, error)
	PutAccount(account models.WalletAccount) error
	AppendLedger(entry models.LedgerEntry) error

	GetWager(id string) (models.Wager, error)
	PutWager(wager models.Wager) error
	ListPendingWagers(mode, periodID string) ([]models.Wager, error)
}
