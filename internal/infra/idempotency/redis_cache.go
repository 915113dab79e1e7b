package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expertbooking/internal/infra"
	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInFlight: another request holding the same key is still computing.
	ErrInFlight = errors.New("request with this idempotency key is in progress")
	// ErrKeyReused: same key, different request body.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

// record is the stored outcome of a completed request.
type record struct {
	RequestHash string          `json:"request_hash"`
	Response    json.RawMessage `json:"response"`
	CompletedAt time.Time       `json:"completed_at"`
}

// lockTTL bounds how long competitors wait out a crashed computation before
// the key becomes claimable again.
const lockTTL = 30 * time.Second

// A competitor losing the lock race polls for the winner's record briefly
// before giving up with in-progress; most winners finish within the window.
const (
	inFlightWait         = time.Second
	inFlightPollInterval = 200 * time.Millisecond
)

// Cache is the Redis-backed idempotency store. Mutating paths fail closed:
// if Redis is unreachable the caller gets UNAVAILABLE instead of proceeding
// without duplicate protection.
type Cache struct {
	client    *redis.Client
	recordTTL time.Duration
}

func NewCache(client *redis.Client, recordTTL time.Duration) *Cache {
	return &Cache{client: client, recordTTL: recordTTL}
}

// Begin returns the cached record for a replayed key, nil after acquiring
// the per-key lock for a first-time key, ErrInFlight while a concurrent
// computation holds the lock, or UNAVAILABLE when Redis is down.
func (c *Cache) Begin(ctx context.Context, holder, key uuid.UUID, requestHash string) (*shared.IdempotencyRecord, error) {
	rec, err := c.getRecord(ctx, holder, key)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if rec.RequestHash != requestHash {
			return nil, ErrKeyReused
		}
		return rec, nil
	}

	acquired, err := c.client.SetNX(ctx, lockKey(holder, key), uuid.NewString(), lockTTL).Result()
	if err != nil {
		return nil, infra.WrapRepoErr("failed to acquire idempotency lock", err, infra.KindUnavailable)
	}
	if acquired {
		return nil, nil
	}

	// Lost the race; wait out the winner for a moment so a concurrent
	// retry usually gets the result instead of an error.
	deadline := time.Now().Add(inFlightWait)
	for {
		rec, err = c.getRecord(ctx, holder, key)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if rec.RequestHash != requestHash {
				return nil, ErrKeyReused
			}
			return rec, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrInFlight
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(inFlightPollInterval):
		}
	}
}

// Complete stores the response and releases the lock.
func (c *Cache) Complete(ctx context.Context, holder, key uuid.UUID, requestHash string, response []byte) error {
	rec := record{
		RequestHash: requestHash,
		Response:    response,
		CompletedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	if err := c.client.Set(ctx, recordKey(holder, key), data, c.recordTTL).Err(); err != nil {
		return infra.WrapRepoErr("failed to store idempotency record", err, infra.KindUnavailable)
	}
	if err := c.client.Del(ctx, lockKey(holder, key)).Err(); err != nil {
		// Lock expires on its own; losing the delete only delays competitors.
		return nil
	}
	return nil
}

// Abort releases the lock so the caller may retry after a failed computation.
func (c *Cache) Abort(ctx context.Context, holder, key uuid.UUID) error {
	if err := c.client.Del(ctx, lockKey(holder, key)).Err(); err != nil {
		return infra.WrapRepoErr("failed to release idempotency lock", err, infra.KindUnavailable)
	}
	return nil
}

func (c *Cache) getRecord(ctx context.Context, holder, key uuid.UUID) (*shared.IdempotencyRecord, error) {
	data, err := c.client.Get(ctx, recordKey(holder, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read idempotency record", err, infra.KindUnavailable)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &shared.IdempotencyRecord{RequestHash: rec.RequestHash, Response: rec.Response}, nil
}

func recordKey(holder, key uuid.UUID) string {
	return fmt.Sprintf("idem:record:%s:%s", holder, key)
}

func lockKey(holder, key uuid.UUID) string {
	return fmt.Sprintf("idem:lock:%s:%s", holder, key)
}
