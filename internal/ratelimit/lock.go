package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyRedeemLock = "newenglish:redeem:lock:%s"
	redeemLockTTL = 10 * time.Second
)

// Deletes the key only while it still holds this holder's token, so an
// expired lock re-taken by another request survives our release.
const releaseIfOwnerScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var errCodeLockNotConfigured = errors.New("code lock not configured")

// codeLock holds one authorization code at a time across gateway replicas.
type codeLock struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
}

func newCodeLock(client *redis.Client) *codeLock {
	if client == nil {
		return nil
	}
	return &codeLock{
		client:  client,
		release: redis.NewScript(releaseIfOwnerScript),
		ttl:     redeemLockTTL,
	}
}

// codeLockKey matches codes the way redemption does: trimmed, upper-case.
func codeLockKey(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", errors.New("code is empty")
	}
	return fmt.Sprintf(keyRedeemLock, normalized), nil
}

// acquire returns the holder token, or "" with ok=false while another
// redemption of the same code is in flight.
func (l *codeLock) acquire(ctx context.Context, code string) (key, holder string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", "", false, errCodeLockNotConfigured
	}
	key, err = codeLockKey(code)
	if err != nil {
		return "", "", false, err
	}
	holder = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, holder, l.ttl).Result()
	if err != nil || !ok {
		return key, "", false, err
	}
	return key, holder, true, nil
}

func (l *codeLock) unlock(ctx context.Context, key, holder string) error {
	if l == nil || l.client == nil || key == "" || holder == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{key}, holder).Err()
}
