package models

import "time"

type LedgerEntryType string

const (
	LedgerDebit  LedgerEntryType = "DEBIT"
	LedgerCredit LedgerEntryType = "CREDIT"
)

type WalletAccount struct {
	AccountID    string    `json:"accountId" bson:"_id"`
	Balance      int64     `json:"balance" bson:"balance"`
	TotalWagered int64     `json:"totalWagered" bson:"totalWagered"`
	TotalWon     int64     `json:"totalWon" bson:"totalWon"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LedgerEntry is one append-only balance movement.
// BalanceAfter always equals BalanceBefore plus the signed amount.
type LedgerEntry struct {
	ID              string          `json:"id" bson:"_id"`
	AccountID       string          `json:"accountId" bson:"accountId"`
	Type            LedgerEntryType `json:"type" bson:"type"`
	Amount          int64           `json:"amount" bson:"amount"`
	BalanceBefore   int64           `json:"balanceBefore" bson:"balanceBefore"`
	BalanceAfter    int64           `json:"balanceAfter" bson:"balanceAfter"`
	RelatedPeriodID string          `json:"relatedPeriodId,omitempty" bson:"relatedPeriodId,omitempty"`
	RelatedWagerID  string          `json:"relatedWagerId,omitempty" bson:"relatedWagerId,omitempty"`
	Timestamp       time.Time       `json:"timestamp" bson:"timestamp"`
}
