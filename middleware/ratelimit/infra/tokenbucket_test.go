package infra

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"forum-admission/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_FreshBucketAllowsExactlyCapacity(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))
	key := domain.MakeKey("comments:create", "user:alice")

	for i := 0; i < 5; i++ {
		assert.True(t, tb.TryConsume(key, 5, time.Minute), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.TryConsume(key, 5, time.Minute), "6th request should be denied")
}

func TestTokenBucket_RefillNeverOverflowsCapacity(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))
	key := domain.MakeKey("comments:create", "user:alice")

	require.True(t, tb.TryConsume(key, 4, time.Second))
	require.True(t, tb.TryConsume(key, 4, time.Second))

	clock.Advance(10 * time.Second)

	assert.Equal(t, 4.0, tb.Tokens(key, 4, time.Second))

	for i := 0; i < 4; i++ {
		assert.True(t, tb.TryConsume(key, 4, time.Second), "request %d after idle should be allowed", i+1)
	}
	assert.False(t, tb.TryConsume(key, 4, time.Second))
}

func TestTokenBucket_RefillIsProportionalToElapsed(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))
	key := domain.Key("k")

	for i := 0; i < 10; i++ {
		require.True(t, tb.TryConsume(key, 10, 10*time.Second))
	}
	require.False(t, tb.TryConsume(key, 10, 10*time.Second))

	// 10 tokens a cada 10s => 1 token/s
	clock.Advance(2500 * time.Millisecond)

	assert.InDelta(t, 2.5, tb.Tokens(key, 10, 10*time.Second), 1e-9)
	assert.True(t, tb.TryConsume(key, 10, 10*time.Second))
	assert.True(t, tb.TryConsume(key, 10, 10*time.Second))
	assert.False(t, tb.TryConsume(key, 10, 10*time.Second))
}

func TestTokenBucket_ClockGoingBackwardsDoesNotRefill(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))
	key := domain.Key("k")

	require.True(t, tb.TryConsume(key, 1, time.Second))

	clock.Advance(-time.Hour)
	assert.False(t, tb.TryConsume(key, 1, time.Second), "negative elapsed must not add tokens")

	// volta ao instante original: ainda nada decorreu desde o último refill
	clock.Advance(time.Hour)
	assert.False(t, tb.TryConsume(key, 1, time.Second))

	clock.Advance(time.Second)
	assert.True(t, tb.TryConsume(key, 1, time.Second))
}

func TestTokenBucket_TakeReportsRemainingAndReset(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))
	key := domain.Key("k")
	now := clock.Now()

	dec := tb.Take(key, 3, 3*time.Second)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 3, dec.Limit)
	assert.Equal(t, 2, dec.Remaining)
	assert.Equal(t, now.Add(time.Second), dec.ResetAt, "one token missing => full again in 1s")

	tb.Take(key, 3, 3*time.Second)
	tb.Take(key, 3, 3*time.Second)

	dec = tb.Take(key, 3, 3*time.Second)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, now.Add(time.Second), dec.ResetAt, "next whole token in 1s")
	assert.Equal(t, 1, dec.RetryAfterSeconds(now))
}

func TestTokenBucket_InvalidParamsDeny(t *testing.T) {
	tb := NewTokenBucket(NewStore())

	assert.False(t, tb.TryConsume("k", 0, time.Second))
	assert.False(t, tb.TryConsume("k", 3, 0))

	buckets, _ := tb.store.Len()
	assert.Zero(t, buckets, "invalid params must not create state")
}

func TestTokenBucket_ConcurrentConsumeAdmitsExactlyCapacity(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))
	key := domain.MakeKey("votes:create", "ip:10.0.0.1")

	const (
		capacity = 25
		callers  = 200
	)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			<-start
			if tb.TryConsume(key, capacity, time.Hour) {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(capacity), allowed.Load())
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(NewStore(WithClock(clock.Now)))

	require.True(t, tb.TryConsume(domain.MakeKey("r", "user:alice"), 1, time.Minute))
	require.False(t, tb.TryConsume(domain.MakeKey("r", "user:alice"), 1, time.Minute))
	assert.True(t, tb.TryConsume(domain.MakeKey("r", "user:bob"), 1, time.Minute))
}

func TestTokenBucket_FastRefillStillAdmitsExactlyCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		interval time.Duration
	}{
		{"small bucket", 3, time.Millisecond},
		{"nanosecond interval", 3, time.Nanosecond},
		{"two million per millisecond", 2_000_000, time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			tb := NewTokenBucket(NewStore(WithClock(clock.Now)))

			admitted := 0
			for i := 0; i < tc.capacity+5; i++ {
				if tb.TryConsume("k", tc.capacity, tc.interval) {
					admitted++
				}
			}
			assert.Equal(t, tc.capacity, admitted)
			assert.GreaterOrEqual(t, tb.Tokens("k", tc.capacity, tc.interval), 0.0)
		})
	}
}
