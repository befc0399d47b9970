package models

import "time"

type BetKind string

const (
	BetColor  BetKind = "COLOR"
	BetNumber BetKind = "NUMBER"
	BetSize   BetKind = "SIZE"
)

type WagerStatus string

const (
	WagerPending WagerStatus = "PENDING"
	WagerWon     WagerStatus = "WON"
	WagerLost    WagerStatus = "LOST"
)

// Wager is a player's bet on one period. Stake and payout are in minor
// currency units.
type Wager struct {
	ID        string      `json:"id" bson:"_id"`
	AccountID string      `json:"accountId" bson:"accountId"`
	Mode      string      `json:"mode" bson:"mode"`
	PeriodID  string      `json:"periodId" bson:"periodId"`
	BetKind   BetKind     `json:"betKind" bson:"betKind"`
	BetValue  string      `json:"betValue" bson:"betValue"`
	Stake     int64       `json:"stake" bson:"stake"`
	Status    WagerStatus `json:"status" bson:"status"`
	Payout    int64       `json:"payout" bson:"payout"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
	SettledAt *time.Time  `json:"settledAt,omitempty" bson:"settledAt,omitempty"`
}
