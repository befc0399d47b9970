// Package engine runs the colour prediction rounds: period allocation,
// outcome draws, settlement, the per-mode round state machine and the
// polling scheduler that drives it.
package engine

import "errors"

var (
	ErrInvalidMode       = errors.New("invalid mode")
	ErrInvalidBetKind    = errors.New("invalid bet kind")
	ErrInvalidBetValue   = errors.New("invalid bet value")
	ErrInvalidStake      = errors.New("stake out of bounds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBettingClosed     = errors.New("betting is closed for this period")
	ErrSchedulerRunning  = errors.New("scheduler already running")
)
