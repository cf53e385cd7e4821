package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

const (
	// orderKey is a sorted set of user ids scored by their 1-based rank.
	orderKey   = "povia:standings:order"
	entriesKey = "povia:standings:entries"
	builtKey   = "povia:standings:built"
	// genKey is bumped on every invalidation and never expires.
	genKey = "povia:standings:gen"
)

// Cache provides Redis-backed standings and evaluation locks
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewCache connects to Redis and verifies the connection
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewCacheWithClient(client, cfg, logger), nil
}

// NewCacheWithClient wraps an existing client.
func NewCacheWithClient(client *redis.Client, cfg *config.RedisConfig, logger *slog.Logger) *Cache {
	return &Cache{
		client:  client,
		ttl:     cfg.CacheTTL,
		lockTTL: cfg.LockTTL,
		logger:  logger,
	}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// StandingsGeneration returns the current invalidation generation.
func (c *Cache) StandingsGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, genKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("reading standings generation: %w", err)
	}
	return gen, nil
}

// ReplaceStandings atomically swaps the cached standings for entries, which
// must already be ranked. The write is refused with domain.ErrStaleStandings
// when the standings were invalidated after generation was read.
func (c *Cache) ReplaceStandings(ctx context.Context, generation int64, entries []domain.LeaderboardEntry) error {
	members := make([]redis.Z, 0, len(entries))
	fields := make([]interface{}, 0, 2*len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding standing: %w", err)
		}
		members = append(members, redis.Z{Score: float64(e.Rank), Member: e.UserID})
		fields = append(fields, e.UserID, raw)
	}

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return domain.ErrStaleStandings
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, orderKey, entriesKey)
			if len(members) > 0 {
				pipe.ZAdd(ctx, orderKey, members...)
				pipe.HSet(ctx, entriesKey, fields...)
				pipe.Expire(ctx, orderKey, c.ttl)
				pipe.Expire(ctx, entriesKey, c.ttl)
			}
			pipe.Set(ctx, builtKey, time.Now().Unix(), c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStaleStandings), errors.Is(err, redis.TxFailedErr):
		// invalidated while we were writing
		return domain.ErrStaleStandings
	default:
		return fmt.Errorf("replacing standings: %w", err)
	}
}

// TopStandings returns the first n cached entries and the number of ranked
// players.
func (c *Cache) TopStandings(ctx context.Context, n int) ([]domain.LeaderboardEntry, int64, error) {
	if err := c.ensureBuilt(ctx); err != nil {
		return nil, 0, err
	}

	pipe := c.client.Pipeline()
	idsCmd := pipe.ZRange(ctx, orderKey, 0, int64(n-1))
	countCmd := pipe.ZCard(ctx, orderKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, fmt.Errorf("reading standings order: %w", err)
	}

	ids := idsCmd.Val()
	if len(ids) == 0 {
		return []domain.LeaderboardEntry{}, countCmd.Val(), nil
	}

	raws, err := c.client.HMGet(ctx, entriesKey, ids...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("reading standings entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			// Expired between the two reads.
			return nil, 0, domain.ErrCacheMiss
		}
		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, 0, fmt.Errorf("decoding standing %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	return entries, countCmd.Val(), nil
}

// StandingOf returns a single user's cached standing.
func (c *Cache) StandingOf(ctx context.Context, userID string) (*domain.LeaderboardEntry, error) {
	if err := c.ensureBuilt(ctx); err != nil {
		return nil, err
	}

	raw, err := c.client.HGet(ctx, entriesKey, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting standing: %w", err)
	}

	var e domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decoding standing: %w", err)
	}
	return &e, nil
}

// InvalidateStandings removes the cached standings and bumps the generation
// so rebuilds already in flight are not cached.
func (c *Cache) InvalidateStandings(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, builtKey, orderKey, entriesKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidating standings: %w", err)
	}
	return nil
}

func (c *Cache) ensureBuilt(ctx context.Context) error {
	n, err := c.client.Exists(ctx, builtKey).Result()
	if err != nil {
		return fmt.Errorf("checking standings: %w", err)
	}
	if n == 0 {
		return domain.ErrCacheMiss
	}
	return nil
}
