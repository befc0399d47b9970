package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingo-engine/models"
)

// fakeRedis evaluates the two lease scripts and plain key/value calls in
// memory.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewCmdResult(nil, f.err)
	}

	key, owner := keys[0], args[0].(string)
	current, held := f.values[key]
	switch script {
	case acquireScript:
		ttl := time.Duration(args[1].(int64)) * time.Millisecond
		if !held || current == owner {
			f.values[key] = owner
			f.ttls[key] = ttl
			return goredis.NewCmdResult(int64(1), nil)
		}
		return goredis.NewCmdResult(int64(0), nil)
	case releaseScript:
		if held && current == owner {
			delete(f.values, key)
			delete(f.ttls, key)
			return goredis.NewCmdResult(int64(1), nil)
		}
		return goredis.NewCmdResult(int64(0), nil)
	}
	return goredis.NewCmdResult(nil, errors.New("unknown script"))
}

func (f *fakeRedis) SetKey(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) GetKey(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (f *fakeRedis) DeleteKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.values, key)
	delete(f.ttls, key)
	return nil
}

// expire drops key as if its ttl ran out.
func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
}

func TestTickLeaseSingleHolder(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	a := NewTickLease(fake, "", 5*time.Second)
	b := NewTickLease(fake, "", 5*time.Second)
	require.NotEqual(t, a.Owner(), b.Owner())

	held, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, 5*time.Second, fake.ttls[DefaultLeaseKey])

	held, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	// renewal by the holder
	held, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	// releasing someone else's lease is a no-op
	require.NoError(t, b.Release(ctx))
	assert.Equal(t, a.Owner(), fake.values[DefaultLeaseKey])

	require.NoError(t, a.Release(ctx))
	held, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestTickLeaseTakeoverAfterExpiry(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	a := NewTickLease(fake, "lease", time.Second)
	b := NewTickLease(fake, "lease", time.Second)

	held, _ := a.Acquire(ctx)
	require.True(t, held)

	fake.expire("lease")
	held, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestTickLeaseError(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	lease := NewTickLease(fake, "", time.Second)

	held, err := lease.Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, held)
	assert.Error(t, lease.Release(context.Background()))
}

func TestRoundSnapshotCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	log, hook := test.NewNullLogger()
	cache := NewRoundSnapshotCache(fake, time.Minute, log)

	_, err := cache.Get(ctx, "30s")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	round := models.Round{
		Mode:            "30s",
		PeriodID:        "WG30-20260110-001",
		Status:          models.RoundResolved,
		RoundStartAt:    start,
		RoundEndAt:      start.Add(30 * time.Second),
		OutcomeDigit:    5,
		OutcomeColors:   models.ColorsForDigit(5),
		OutcomeSize:     models.SizeBig,
		SettlementDone:  true,
		SettlementStats: &models.SettlementStats{TotalWagers: 2, Winners: 1, TotalStake: 200, TotalPayout: 150},
	}
	cache.RoundChanged(ctx, round)
	assert.Equal(t, time.Minute, fake.ttls[snapshotPrefix+"30s"])

	got, err := cache.Get(ctx, "30s")
	require.NoError(t, err)
	assert.Equal(t, round.PeriodID, got.PeriodID)
	assert.True(t, round.RoundEndAt.Equal(got.RoundEndAt))
	assert.Equal(t, round.OutcomeColors, got.OutcomeColors)
	assert.Equal(t, *round.SettlementStats, *got.SettlementStats)

	fake.err = errors.New("down")
	cache.RoundChanged(ctx, round)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to cache round snapshot", hook.LastEntry().Message)
}

func TestRoundSnapshotCacheCorruptValue(t *testing.T) {
	fake := newFakeRedis()
	fake.values[snapshotPrefix+"1min"] = "{not json"
	log, _ := test.NewNullLogger()
	cache := NewRoundSnapshotCache(fake, time.Minute, log)

	_, err := cache.Get(context.Background(), "1min")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))

	// the corrupt value is gone, so the next read is a plain miss
	_, err = cache.Get(context.Background(), "1min")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}
