package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkwa12358/newenglish/internal/config"
	"go.uber.org/zap"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l := New(Params{
		Cfg:     config.Config{},
		Gateway: config.NewStaticGatewayConfigHolder(config.DefaultGatewayConfig()),
		Log:     zap.NewNop(),
	})
	require.False(t, l.Enabled())

	for i := 0; i < 50; i++ {
		res, err := l.AllowAssessment(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	release, ok, err := l.LockCode(context.Background(), "AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	res, err := l.AllowRedeem(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketRequiresClient(t *testing.T) {
	var b *TokenBucket
	_, err := b.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errNotConfigured)
	assert.Nil(t, NewTokenBucket(nil))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(true, 0, 1))
	assert.Equal(t, 2*time.Second, retryAfter(false, 0.5, 0.25))
	assert.Equal(t, 10*time.Second, retryAfter(false, 0, 0.1))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 40*time.Second, bucketTTL(0.5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestScriptValueParsing(t *testing.T) {
	assert.EqualValues(t, 1, toInt(int64(1)))
	assert.EqualValues(t, 3, toInt("3"))
	assert.InDelta(t, 4.25, toFloat("4.25"), 1e-9)
	assert.InDelta(t, 2, toFloat(int64(2)), 1e-9)
	assert.Zero(t, toFloat(nil))
}

func TestCodeLockKeyNormalizes(t *testing.T) {
	key, err := codeLockKey("  abcd-efgh-jkmn ")
	require.NoError(t, err)
	assert.Equal(t, "newenglish:redeem:lock:ABCD-EFGH-JKMN", key)

	_, err = codeLockKey("   ")
	assert.Error(t, err)
}

func TestNilCodeLock(t *testing.T) {
	var l *codeLock
	_, _, ok, err := l.acquire(context.Background(), "ABCD")
	assert.False(t, ok)
	assert.ErrorIs(t, err, errCodeLockNotConfigured)
	assert.NoError(t, l.unlock(context.Background(), "k", "h"))
	assert.Nil(t, newCodeLock(nil))
}
