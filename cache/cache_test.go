package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-shelf/monitor"
)

type backend struct {
	name   string
	cache  Cache
	locker Locker
	// advance moves the backend clock forward (or waits) past a TTL.
	advance func(d time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	r := NewRedisWithClient(client, "test", time.Hour)

	b, err := OpenBadger(BadgerConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	sleep := func(d time.Duration) { time.Sleep(d) }

	return []backend{
		{name: BackendMemory, cache: NewMemory(DefaultMemoryConfig()), locker: NewMemoryLocker(), advance: sleep},
		{name: BackendRedis, cache: r, locker: r.Locker(), advance: mr.FastForward},
		{name: BackendBadger, cache: b, locker: b.Locker(), advance: sleep},
	}
}

func TestCache_BasicOperations(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			c := be.cache

			_, ok, err := c.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
			v, ok, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("v1"), v)

			require.NoError(t, c.Set(ctx, "k", []byte("v2"), time.Minute))
			v, _, err = c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), v)

			require.NoError(t, c.Delete(ctx, "k"))
			_, ok, err = c.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			require.NoError(t, be.cache.Set(ctx, "short", []byte("x"), time.Second))
			be.advance(2100 * time.Millisecond)

			_, ok, err := be.cache.Get(ctx, "short")
			require.NoError(t, err)
			assert.False(t, ok, "expired entry must read as absent")
		})
	}
}

func TestLocker_AcquireIsExclusive(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			key := LockKey("recommendations", "u1")

			var wins atomic.Int32
			var winner atomic.Value
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					token, ok, err := be.locker.Acquire(ctx, key, time.Minute)
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
						winner.Store(token)
					}
				}()
			}
			wg.Wait()
			require.Equal(t, int32(1), wins.Load())

			held, err := be.locker.Held(ctx, key)
			require.NoError(t, err)
			assert.True(t, held)

			require.NoError(t, be.locker.Release(ctx, key, winner.Load().(string)))
			held, err = be.locker.Held(ctx, key)
			require.NoError(t, err)
			assert.False(t, held)
		})
	}
}

func TestLocker_ReleaseRequiresHolderToken(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			key := LockKey("book_summary", "b1")

			token, ok, err := be.locker.Acquire(ctx, key, time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
			require.NotEmpty(t, token)

			require.NoError(t, be.locker.Release(ctx, key, "someone-else"))
			held, err := be.locker.Held(ctx, key)
			require.NoError(t, err)
			assert.True(t, held, "a foreign token must not release the lock")

			require.NoError(t, be.locker.Release(ctx, key, token))
			held, err = be.locker.Held(ctx, key)
			require.NoError(t, err)
			assert.False(t, held)

			require.NoError(t, be.locker.Release(ctx, key, token), "releasing a free lock is a no-op")
		})
	}
}

func TestLocker_ExpiresByTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	l := NewRedisWithClient(client, "", time.Hour).Locker()

	stale, ok, err := l.Acquire(ctx, "lock:embedding:b1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(61 * time.Second)

	fresh, ok, err := l.Acquire(ctx, "lock:embedding:b1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "lock must self-heal after its TTL")
	assert.NotEqual(t, stale, fresh)

	require.NoError(t, l.Release(ctx, "lock:embedding:b1", stale))
	held, err := l.Held(ctx, "lock:embedding:b1")
	require.NoError(t, err)
	assert.True(t, held, "an expired holder must not release its successor's lock")
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(DefaultMemoryConfig())

	require.NoError(t, SetJSON(ctx, c, UserRecommendationsKey("7"), []string{"a", "b"}, time.Hour))

	var ids []string
	ok, err := GetJSON(ctx, c, UserRecommendationsKey("7"), &ids)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	ok, err = GetJSON(ctx, c, UserRecommendationsKey("8"), &ids)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "book_embedding_abc", BookEmbeddingKey("abc"))
	assert.Equal(t, "user_recommendations_42", UserRecommendationsKey("42"))
	assert.Equal(t, "book_full_detail_abc_anon", BookDetailKey("abc", ""))
	assert.Equal(t, "book_full_detail_abc_42", BookDetailKey("abc", "42"))
	assert.Equal(t, "lock:embedding:abc", LockKey("embedding", "abc"))
	assert.NotEqual(t, BookEmbeddingKey("abc"), LockKey("embedding", "abc"))

	d1 := TextDigest("hello", 250)
	assert.Len(t, d1, 32)
	assert.Equal(t, d1, TextDigest("hello", 250))
	assert.NotEqual(t, d1, TextDigest("hello", 100))
	assert.Equal(t, "user_summary_text_"+d1, TextSummaryKey(d1))
}

func TestSecondsTTL(t *testing.T) {
	assert.Equal(t, time.Duration(0), secondsTTL(0))
	assert.Equal(t, time.Second, secondsTTL(10*time.Millisecond))
	assert.Equal(t, 2*time.Second, secondsTTL(1500*time.Millisecond))
	assert.Equal(t, time.Minute, secondsTTL(time.Minute))
}

func TestInstrumented_RecordsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	m := monitor.NewInMemoryCollector()
	c := Instrument(NewMemory(DefaultMemoryConfig()), BackendMemory, m, zerolog.Nop())

	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	_, _, _ = c.Get(ctx, "a")

	assert.Equal(t, 1, m.Count("cache:memory:miss"))
	assert.Equal(t, 1, m.Count("cache:memory:hit"))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Backend: "memcached"}.Validate())
}
