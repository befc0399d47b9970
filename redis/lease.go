package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const DefaultLeaseKey = "wingo:scheduler:lease"

// Takes the lease when free, or extends it when already held by ARGV[1].
const acquireScript = `
local current = redis.call("GET", KEYS[1])
if current == false then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
if current == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
return 0
`

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type scripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

// TickLease lets one scheduler process at a time advance rounds. The holder
// renews it on every tick; if the holder dies the lease expires after ttl
// and another process takes over.
type TickLease struct {
	client scripter
	key    string
	owner  string
	ttl    time.Duration
}

func NewTickLease(client scripter, key string, ttl time.Duration) *TickLease {
	if key == "" {
		key = DefaultLeaseKey
	}
	return &TickLease{client: client, key: key, owner: uuid.New().String(), ttl: ttl}
}

func (l *TickLease) Owner() string {
	return l.owner
}

func (l *TickLease) Acquire(ctx context.Context) (bool, error) {
	n, err := l.client.Eval(ctx, acquireScript, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	return n == 1, nil
}

// Release gives the lease up if this process still holds it.
func (l *TickLease) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
