//go:build integration

package idempotency_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"expertbooking/internal/infra"
	"expertbooking/internal/infra/idempotency"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce      sync.Once
	redisContainer testcontainers.Container
	redisErr       error
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()
		redisContainer, redisErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
	})
	require.NoError(t, redisErr, "failed to start Redis container")

	ctx := context.Background()
	port, err := redisContainer.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestBeginCompleteReplay(t *testing.T) {
	cache := idempotency.NewCache(setupRedis(t), 15*time.Minute)
	ctx := context.Background()
	holder, key := uuid.New(), uuid.New()

	rec, err := cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	assert.Nil(t, rec, "first request owns the key")

	require.NoError(t, cache.Complete(ctx, holder, key, "hash_a", []byte(`{"session_id":"sess_1"}`)))

	rec, err = cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.JSONEq(t, `{"session_id":"sess_1"}`, string(rec.Response))

	_, err = cache.Begin(ctx, holder, key, "hash_b")
	assert.ErrorIs(t, err, idempotency.ErrKeyReused)
}

func TestBeginWaitsOutTheWinner(t *testing.T) {
	cache := idempotency.NewCache(setupRedis(t), 15*time.Minute)
	ctx := context.Background()
	holder, key := uuid.New(), uuid.New()

	rec, err := cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	require.Nil(t, rec)

	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = cache.Complete(ctx, holder, key, "hash_a", []byte(`{"session_id":"sess_1"}`))
	}()

	// The competitor arrives while the winner is still computing and should
	// poll its way to the stored result instead of erroring out.
	rec, err = cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.JSONEq(t, `{"session_id":"sess_1"}`, string(rec.Response))
}

func TestBeginGivesUpOnStuckWinner(t *testing.T) {
	cache := idempotency.NewCache(setupRedis(t), 15*time.Minute)
	ctx := context.Background()
	holder, key := uuid.New(), uuid.New()

	rec, err := cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	require.Nil(t, rec)

	start := time.Now()
	_, err = cache.Begin(ctx, holder, key, "hash_a")
	assert.ErrorIs(t, err, idempotency.ErrInFlight)
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "competitor waits before giving up")
}

func TestAbortReleasesTheKey(t *testing.T) {
	cache := idempotency.NewCache(setupRedis(t), 15*time.Minute)
	ctx := context.Background()
	holder, key := uuid.New(), uuid.New()

	rec, err := cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, cache.Abort(ctx, holder, key))

	rec, err = cache.Begin(ctx, holder, key, "hash_a")
	require.NoError(t, err)
	assert.Nil(t, rec, "aborted key is claimable again")
}

func TestBeginFailsClosedWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	cache := idempotency.NewCache(client, 15*time.Minute)

	_, err := cache.Begin(context.Background(), uuid.New(), uuid.New(), "hash_a")
	assert.True(t, infra.IsKind(err, infra.KindUnavailable))
}
