package models

// PeriodCounter tracks the last allocated period number of a mode for
// LastDate (YYYYMMDD in the reference timezone).
type PeriodCounter struct {
	Mode     string `json:"mode" bson:"_id"`
	LastDate string `json:"lastDate" bson:"lastDate"`
	Counter  int    `json:"counter" bson:"counter"`
}
