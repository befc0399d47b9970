package models

import "time"

// Mode is one round timing profile.
type Mode struct {
	Name       string        `json:"name" yaml:"name" validate:"required"`
	Code       string        `json:"code" yaml:"code" validate:"required,alphanum"`
	Duration   time.Duration `json:"duration" yaml:"duration" validate:"required,gt=0"`
	LockWindow time.Duration `json:"lockWindow" yaml:"lock_window" validate:"required,gt=0,ltfield=Duration"`
}

// DefaultModes are the four WinGo modes.
func DefaultModes() []Mode {
	return []Mode{
		{Name: "30s", Code: "WG30", Duration: 30 * time.Second, LockWindow: 5 * time.Second},
		{Name: "1min", Code: "WG1", Duration: time.Minute, LockWindow: 5 * time.Second},
		{Name: "3min", Code: "WG3", Duration: 3 * time.Minute, LockWindow: 5 * time.Second},
		{Name: "5min", Code: "WG5", Duration: 5 * time.Minute, LockWindow: 5 * time.Second},
	}
}
