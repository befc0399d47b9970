package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wingo-engine/models"
	"wingo-engine/store"
)

// GuestPrefix marks guest account ids, which are opened with the welcome
// balance.
const GuestPrefix = "guest-"

// LedgerRef links a ledger entry to the period and wager that caused it.
type LedgerRef struct {
	PeriodID string
	WagerID  string
}

// WalletLedger is the only writer of wallet balances. Every movement
// appends a LedgerEntry in the same transaction as the balance change.
// It does not deduplicate by LedgerRef; callers guard against replays.
type WalletLedger struct {
	store          store.Store
	welcomeBalance int64
	log            logrus.FieldLogger
}

// NewWalletLedger returns a ledger that opens guest accounts with
// welcomeBalance.
func NewWalletLedger(st store.Store, welcomeBalance int64, log logrus.FieldLogger) *WalletLedger {
	return &WalletLedger{store: st, welcomeBalance: welcomeBalance, log: log}
}

// Debit removes amount from the account and returns the new balance.
func (l *WalletLedger) Debit(ctx context.Context, accountID string, amount int64, ref LedgerRef) (int64, error) {
	return l.run(ctx, func(tx store.Tx, now time.Time) (int64, error) {
		return l.DebitTx(tx, accountID, amount, ref, now)
	})
}

// Credit adds amount to the account and returns the new balance.
func (l *WalletLedger) Credit(ctx context.Context, accountID string, amount int64, ref LedgerRef) (int64, error) {
	return l.run(ctx, func(tx store.Tx, now time.Time) (int64, error) {
		return l.CreditTx(tx, accountID, amount, ref, now)
	})
}

// DebitTx debits inside tx. A debit larger than the balance is rejected
// with ErrInsufficientFunds and nothing is written.
func (l *WalletLedger) DebitTx(tx store.Tx, accountID string, amount int64, ref LedgerRef, now time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	account, err := l.loadTx(tx, accountID, now)
	if err != nil {
		return 0, err
	}
	if account.Balance < amount {
		return account.Balance, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFunds, account.Balance, amount)
	}
	if ref.WagerID != "" {
		account.TotalWagered += amount
	}
	return l.apply(tx, account, models.LedgerDebit, amount, ref, now)
}

// CreditTx credits inside tx.
func (l *WalletLedger) CreditTx(tx store.Tx, accountID string, amount int64, ref LedgerRef, now time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	account, err := l.loadTx(tx, accountID, now)
	if err != nil {
		return 0, err
	}
	if ref.WagerID != "" {
		account.TotalWon += amount
	}
	return l.apply(tx, account, models.LedgerCredit, amount, ref, now)
}

// Balance reads the current balance without opening the account.
func (l *WalletLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := l.store.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return l.openingBalance(accountID), nil
	}
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (l *WalletLedger) run(ctx context.Context, fn func(tx store.Tx, now time.Time) (int64, error)) (int64, error) {
	var balance int64
	err := l.store.RunInTransaction(ctx, func(tx store.Tx) error {
		b, err := fn(tx, tx.Now())
		balance = b
		return err
	})
	if err != nil {
		return balance, err
	}
	return balance, nil
}

// loadTx reads the account, opening it on first use. Guest accounts are
// opened with a welcome credit recorded in the ledger.
func (l *WalletLedger) loadTx(tx store.Tx, accountID string, now time.Time) (models.WalletAccount, error) {
	if strings.TrimSpace(accountID) == "" {
		return models.WalletAccount{}, errors.New("account id is required")
	}

	account, err := tx.GetAccount(accountID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.WalletAccount{}, fmt.Errorf("read account %s: %w", accountID, err)
	}

	account = models.WalletAccount{AccountID: accountID, CreatedAt: now, UpdatedAt: now}
	if opening := l.openingBalance(accountID); opening > 0 {
		if _, err := l.apply(tx, account, models.LedgerCredit, opening, LedgerRef{}, now); err != nil {
			return models.WalletAccount{}, err
		}
		account.Balance = opening
	}
	l.log.WithField("account_id", accountID).WithField("balance", account.Balance).Debug("wallet opened")
	return account, nil
}

func (l *WalletLedger) openingBalance(accountID string) int64 {
	if strings.HasPrefix(accountID, GuestPrefix) {
		return l.welcomeBalance
	}
	return 0
}

func (l *WalletLedger) apply(tx store.Tx, account models.WalletAccount, kind models.LedgerEntryType, amount int64, ref LedgerRef, now time.Time) (int64, error) {
	before := account.Balance
	after := before + amount
	if kind == models.LedgerDebit {
		after = before - amount
	}

	entry := models.LedgerEntry{
		ID:              uuid.New().String(),
		AccountID:       account.AccountID,
		Type:            kind,
		Amount:          amount,
		BalanceBefore:   before,
		BalanceAfter:    after,
		RelatedPeriodID: ref.PeriodID,
		RelatedWagerID:  ref.WagerID,
		Timestamp:       now,
	}
	if err := tx.AppendLedger(entry); err != nil {
		return before, fmt.Errorf("append ledger entry: %w", err)
	}

	account.Balance = after
	account.UpdatedAt = now
	if err := tx.PutAccount(account); err != nil {
		return before, fmt.Errorf("write account %s: %w", account.AccountID, err)
	}
	return after, nil
}
