package models

import "time"

type RoundStatus string

const (
	RoundBetting  RoundStatus = "BETTING"
	RoundLocked   RoundStatus = "LOCKED"
	RoundResolved RoundStatus = "RESOLVED"
)

// NoOutcome is the outcome digit of a round that has not been resolved yet.
const NoOutcome = -1

// Round is the single live round document of a mode. It is keyed by mode
// and superseded in place when the next period opens.
type Round struct {
	Mode            string           `json:"mode" bson:"_id"`
	PeriodID        string           `json:"periodId" bson:"periodId"`
	Status          RoundStatus      `json:"status" bson:"status"`
	RoundStartAt    time.Time        `json:"roundStartAt" bson:"roundStartAt"`
	RoundEndAt      time.Time        `json:"roundEndAt" bson:"roundEndAt"`
	OutcomeDigit    int              `json:"outcomeDigit" bson:"outcomeDigit"`
	OutcomeColors   []Color          `json:"outcomeColors,omitempty" bson:"outcomeColors,omitempty"`
	OutcomeSize     Size             `json:"outcomeSize,omitempty" bson:"outcomeSize,omitempty"`
	WagerCount      int              `json:"wagerCount" bson:"wagerCount"`
	SettlementDone  bool             `json:"settlementDone" bson:"settlementDone"`
	SettlementStats *SettlementStats `json:"settlementStats,omitempty" bson:"settlementStats,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// SettlementStats aggregates the wagers of one settled period.
type SettlementStats struct {
	TotalWagers int   `json:"totalWagers" bson:"totalWagers"`
	Winners     int   `json:"winners" bson:"winners"`
	TotalStake  int64 `json:"totalStake" bson:"totalStake"`
	TotalPayout int64 `json:"totalPayout" bson:"totalPayout"`
}

// TimeRemaining is how long the round still has before its scheduled end.
// It is negative once the end has passed.
func (r Round) TimeRemaining(now time.Time) time.Duration {
	return r.RoundEndAt.Sub(now)
}

// Outcome returns the resolved outcome stored on the round, if any.
func (r Round) Outcome() (Outcome, bool) {
	if r.OutcomeDigit == NoOutcome {
		return Outcome{}, false
	}
	return Outcome{Digit: r.OutcomeDigit, Colors: r.OutcomeColors, Size: r.OutcomeSize}, true
}
