package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

const deviceKeyTTL = 15 * time.Minute

// RedisDeviceKeyStore is a read-through cache over a persistent key store.
// Log ingestion hits the key store on every encrypted upload, so the hot
// path reads from Redis and falls back to the source on a miss. Writes and
// deletes go to the source first and then invalidate the cached entry.
type RedisDeviceKeyStore struct {
	client *redis.Client
	source ports.DeviceKeyStore
}

// NewRedisDeviceKeyStore wraps source with a Redis read-through cache.
func NewRedisDeviceKeyStore(client *redis.Client, source ports.DeviceKeyStore) *RedisDeviceKeyStore {
	return &RedisDeviceKeyStore{client: client, source: source}
}

func (s *RedisDeviceKeyStore) Get(ctx context.Context, deviceID uuid.UUID) (domain.DeviceKey, error) {
	redisKey := cacheKey(deviceID)

	data, err := s.client.HGetAll(ctx, redisKey).Result()
	if err == nil && len(data) > 0 {
		if key, hit := decodeCachedKey(deviceID, data); hit {
			return key, nil
		}
	}
	// Redis being down degrades to source reads, never to a hard failure.

	key, err := s.source.Get(ctx, deviceID)
	if err != nil {
		return domain.DeviceKey{}, err
	}

	_, _ = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, redisKey,
			"key", base64.StdEncoding.EncodeToString(key.Key),
			"rotated_at", key.RotatedAt.Unix(),
		)
		p.Expire(ctx, redisKey, deviceKeyTTL)
		return nil
	})
	return key, nil
}

func (s *RedisDeviceKeyStore) Set(ctx context.Context, deviceID uuid.UUID, key []byte, rotatedAt time.Time) error {
	if err := s.source.Set(ctx, deviceID, key, rotatedAt); err != nil {
		return err
	}
	return s.invalidate(ctx, deviceID)
}

func (s *RedisDeviceKeyStore) Delete(ctx context.Context, deviceID uuid.UUID) error {
	if err := s.source.Delete(ctx, deviceID); err != nil {
		return err
	}
	return s.invalidate(ctx, deviceID)
}

// invalidate must succeed or the rotation is reported as failed. Serving a
// stale key after a rotation would make every upload fall back to plaintext.
func (s *RedisDeviceKeyStore) invalidate(ctx context.Context, deviceID uuid.UUID) error {
	if err := s.client.Del(ctx, cacheKey(deviceID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func cacheKey(deviceID uuid.UUID) string {
	return "ingest:devicekey:" + deviceID.String()
}

func decodeCachedKey(deviceID uuid.UUID, data map[string]string) (domain.DeviceKey, bool) {
	raw, ok := data["key"]
	if !ok {
		return domain.DeviceKey{}, false
	}
	material, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return domain.DeviceKey{}, false
	}
	key := domain.DeviceKey{DeviceID: deviceID, Key: material}
	if ts, ok := data["rotated_at"]; ok {
		if unix, convErr := strconv.ParseInt(ts, 10, 64); convErr == nil {
			key.RotatedAt = time.Unix(unix, 0).UTC()
		}
	}
	return key, true
}
