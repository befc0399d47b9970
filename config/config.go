// Package config loads the process settings from the environment and the
// optional mode table file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"wingo-engine/models"
)

var validate = validator.New()

type Config struct {
	MongoURI      string `env:"MONGODB_URI,required" validate:"required"`
	MongoDatabase string `env:"MONGODB_DATABASE,default=wingo" validate:"required"`

	// Redis is optional; without it the process runs as the only scheduler.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	Port string `env:"PORT,default=5000" validate:"required,numeric"`

	TickInterval   time.Duration `env:"TICK_INTERVAL,default=2s" validate:"gt=0"`
	StuckAfter     time.Duration `env:"STUCK_AFTER,default=30s" validate:"gt=0"`
	TickLeaseTTL   time.Duration `env:"TICK_LEASE_TTL,default=5s" validate:"gtfield=TickInterval"`
	PeriodTimezone string        `env:"PERIOD_TIMEZONE,default=Asia/Kolkata" validate:"required"`
	ModesFile      string        `env:"MODES_FILE"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`

	GuestWelcomeBalance int64   `env:"GUEST_WELCOME_BALANCE,default=100000" validate:"gte=0"`
	MinStake            int64   `env:"MIN_STAKE,default=10" validate:"gt=0"`
	MaxStake            int64   `env:"MAX_STAKE,default=1000000" validate:"gtefield=MinStake"`
	BetRateLimit        float64 `env:"BET_RATE_LIMIT,default=5" validate:"gt=0"`
	BetRateBurst        int     `env:"BET_RATE_BURST,default=10" validate:"gt=0"`
}

// Load decodes the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location is the reference timezone of period id dates.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.PeriodTimezone)
	if err != nil {
		return nil, fmt.Errorf("load period timezone %q: %w", c.PeriodTimezone, err)
	}
	return loc, nil
}

type modesFile struct {
	Modes []models.Mode `yaml:"modes" validate:"required,min=1,unique=Name,unique=Code,dive"`
}

// LoadModes reads the mode table from a YAML file, or returns the default
// modes when path is empty.
//
//	modes:
//	  - name: 30s
//	    code: WG30
//	    duration: 30s
//	    lock_window: 5s
func LoadModes(path string) ([]models.Mode, error) {
	if path == "" {
		return models.DefaultModes(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modes file: %w", err)
	}
	return ParseModes(data)
}

func ParseModes(data []byte) ([]models.Mode, error) {
	var file modesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse modes file: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid modes: %w", err)
	}
	return file.Modes, nil
}
