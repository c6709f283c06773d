package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

const (
	counterKeyPrefix = "interaction:count:"
	hotKeyScoresKey  = "interaction:hotkey:scores"

	fieldValue   = "value"
	fieldVersion = "version"
)

// CounterStore caches counter aggregates and tracks read hot keys.
type CounterStore interface {
	GetCount(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, bool, error)
	// SetCountIfNewer writes agg only when its version is greater than the cached one.
	SetCountIfNewer(ctx context.Context, agg domain.CounterAggregate) (bool, error)
	// SetCount overwrites the cached aggregate.
	SetCount(ctx context.Context, agg domain.CounterAggregate) error
	Invalidate(ctx context.Context, targetID string, kind domain.InteractionKind) error
	RecordAccess(ctx context.Context, targetID string, kind domain.InteractionKind) error
	GetTopHotKeys(ctx context.Context, n int64) ([]HotKey, error)
	ResetHotKeyScores(ctx context.Context) error
	Close() error
}

// HotKey identifies a frequently read counter.
type HotKey struct {
	TargetID string
	Kind     domain.InteractionKind
}

func (h HotKey) member() string { return string(h.Kind) + ":" + h.TargetID }

func parseHotKey(member string) (HotKey, bool) {
	kind, target, ok := strings.Cut(member, ":")
	if !ok || target == "" || !domain.InteractionKind(kind).Valid() {
		return HotKey{}, false
	}
	return HotKey{TargetID: target, Kind: domain.InteractionKind(kind)}, true
}

// RedisCounterStore implements CounterStore backed by Redis hashes.
type RedisCounterStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures RedisCounterStore.
type Options struct {
	Address  string
	Password string
	DB       int
	// TTL bounds how long an entry survives without a write. 0 keeps entries forever.
	TTL time.Duration
}

// NewRedisCounterStore creates a new Redis-backed counter store.
func NewRedisCounterStore(opts Options) (*RedisCounterStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCounterStoreFromClient(client, opts.TTL), nil
}

// NewRedisCounterStoreFromClient wraps an existing client.
func NewRedisCounterStoreFromClient(client *redis.Client, ttl time.Duration) *RedisCounterStore {
	return &RedisCounterStore{client: client, ttl: ttl}
}

func counterKey(targetID string, kind domain.InteractionKind) string {
	return counterKeyPrefix + string(kind) + ":" + targetID
}

// GetCount returns the cached aggregate.
// Returns (agg, true, nil) on hit, (zero, false, nil) on miss, (zero, false, err) on error.
func (s *RedisCounterStore) GetCount(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, bool, error) {
	agg := domain.CounterAggregate{TargetID: targetID, Kind: kind}

	vals, err := s.client.HMGet(ctx, counterKey(targetID, kind), fieldValue, fieldVersion).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return agg, false, nil
		}
		return agg, false, fmt.Errorf("redis get count: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return agg, false, nil
	}

	value, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return agg, false, fmt.Errorf("parse cached count: %w", err)
	}
	version, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return agg, false, fmt.Errorf("parse cached version: %w", err)
	}

	agg.Value = value
	agg.Version = version
	return agg, true, nil
}

// setIfNewerScript writes value/version only if the incoming version is
// newer than the cached one. Returns 1 if written, 0 otherwise.
var setIfNewerScript = redis.NewScript(`
local key = KEYS[1]
local version = tonumber(ARGV[2])
local current = tonumber(redis.call("HGET", key, "version"))
if current and current >= version then
  return 0
end
redis.call("HSET", key, "value", ARGV[1], "version", ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl and ttl > 0 then
  redis.call("PEXPIRE", key, ttl)
end
return 1
`)

// SetCountIfNewer writes the aggregate unless the cache already holds the
// same or a newer version, so out-of-order writers cannot regress it.
func (s *RedisCounterStore) SetCountIfNewer(ctx context.Context, agg domain.CounterAggregate) (bool, error) {
	res, err := setIfNewerScript.Run(ctx, s.client,
		[]string{counterKey(agg.TargetID, agg.Kind)},
		agg.Value, agg.Version, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set count if newer: %w", err)
	}
	return res == 1, nil
}

// SetCount overwrites the cached aggregate.
func (s *RedisCounterStore) SetCount(ctx context.Context, agg domain.CounterAggregate) error {
	key := counterKey(agg.TargetID, agg.Kind)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fieldValue, agg.Value, fieldVersion, agg.Version)
		if s.ttl > 0 {
			p.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set count: %w", err)
	}
	return nil
}

// Invalidate drops the cached aggregate.
func (s *RedisCounterStore) Invalidate(ctx context.Context, targetID string, kind domain.InteractionKind) error {
	if err := s.client.Del(ctx, counterKey(targetID, kind)).Err(); err != nil {
		return fmt.Errorf("redis invalidate count: %w", err)
	}
	return nil
}

// RecordAccess increments the access score of a counter in the hot key sorted set.
func (s *RedisCounterStore) RecordAccess(ctx context.Context, targetID string, kind domain.InteractionKind) error {
	err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, HotKey{TargetID: targetID, Kind: kind}.member()).Err()
	if err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the top-n most read counters.
func (s *RedisCounterStore) GetTopHotKeys(ctx context.Context, n int64) ([]HotKey, error) {
	members, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}

	keys := make([]HotKey, 0, len(members))
	for _, m := range members {
		if hk, ok := parseHotKey(m); ok {
			keys = append(keys, hk)
		}
	}
	return keys, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisCounterStore) ResetHotKeyScores(ctx context.Context) error {
	if err := s.client.Del(ctx, hotKeyScoresKey).Err(); err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

var _ CounterStore = (*RedisCounterStore)(nil)
