package models

import "time"

// HistoryRecord is the read-only analytics copy of a settled period.
type HistoryRecord struct {
	ID         string          `json:"id" bson:"_id"`
	Mode       string          `json:"mode" bson:"mode"`
	PeriodID   string          `json:"periodId" bson:"periodId"`
	Outcome    Outcome         `json:"outcome" bson:"outcome"`
	Stats      SettlementStats `json:"stats" bson:"stats"`
	ResolvedAt time.Time       `json:"resolvedAt" bson:"resolvedAt"`
}

// HistoryKey is the document key of a period's history record.
func HistoryKey(mode, periodID string) string {
	return mode + ":" + periodID
}
