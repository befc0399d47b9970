package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wingo-engine/models"
)

const snapshotPrefix = "wingo:round:"

type keyValue interface {
	SetKey(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetKey(ctx context.Context, key string) (string, error)
	DeleteKey(ctx context.Context, key string) error
}

// RoundSnapshotCache keeps a read-optimized copy of each mode's round. It is
// rebuilt from the round document on every transition and never written
// back to the store.
type RoundSnapshotCache struct {
	kv  keyValue
	ttl time.Duration
	log logrus.FieldLogger
}

// NewRoundSnapshotCache keeps snapshots in kv for ttl.
func NewRoundSnapshotCache(kv keyValue, ttl time.Duration, log logrus.FieldLogger) *RoundSnapshotCache {
	return &RoundSnapshotCache{kv: kv, ttl: ttl, log: log}
}

// RoundChanged stores the round. Failures only cost a cache miss.
func (c *RoundSnapshotCache) RoundChanged(ctx context.Context, round models.Round) {
	data, err := json.Marshal(round)
	if err != nil {
		c.log.WithField("mode", round.Mode).WithError(err).Warn("failed to encode round snapshot")
		return
	}
	if err := c.kv.SetKey(ctx, snapshotPrefix+round.Mode, data, c.ttl); err != nil {
		c.log.WithField("mode", round.Mode).WithError(err).Warn("failed to cache round snapshot")
	}
}

// Get returns the cached round of mode, or ErrCacheMiss. A snapshot that
// cannot be decoded is dropped so the next transition rewrites it.
func (c *RoundSnapshotCache) Get(ctx context.Context, mode string) (models.Round, error) {
	key := snapshotPrefix + mode
	raw, err := c.kv.GetKey(ctx, key)
	if err != nil {
		return models.Round{}, err
	}
	var round models.Round
	if err := json.Unmarshal([]byte(raw), &round); err != nil {
		if delErr := c.kv.DeleteKey(ctx, key); delErr != nil {
			c.log.WithField("mode", mode).WithError(delErr).Warn("failed to drop corrupt round snapshot")
		}
		return models.Round{}, fmt.Errorf("decode round snapshot: %w", err)
	}
	return round, nil
}
