// Package synclock provides a Redis-backed advisory lock serializing
// concurrent writers to the same provider's working-table slice.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Acquire when another run already holds the
// lock for the given provider.
var ErrLocked = errors.New("synclock: lock held by another run")

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// Lock is a Redis advisory lock scoped to one provider's sync run.
type Lock struct {
	client *redis.Client
	script *redis.Script
	key    string
	token  string
}

// New returns a Lock for provider, backed by client. Acquire/Release key
// all commands under "catalog:sync-lock:<provider>".
func New(client *redis.Client, provider string) *Lock {
	return &Lock{
		client: client,
		script: redis.NewScript(releaseScript),
		key:    fmt.Sprintf("catalog:sync-lock:%s", provider),
		token:  uuid.NewString(),
	}
}

// Acquire sets the lock key with NX and the given TTL. It returns
// ErrLocked if another run currently holds it.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return fmt.Errorf("synclock: acquire %s: %w", l.key, err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Release deletes the lock key only if it still holds this run's token,
// so a run never releases a lock acquired by a later run after its own
// TTL expired.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.script.Run(ctx, l.client, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("synclock: release %s: %w", l.key, err)
	}
	return nil
}
