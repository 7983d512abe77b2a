package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/apoliceplus/backend/internal/platform/envutil"
	"github.com/apoliceplus/backend/internal/platform/logger"
)

// ProgressCache is a read-through cache for computed campaign progress.
// The database row is always the record of truth; a cold or unreachable
// cache only costs a recomputation.
type ProgressCache interface {
	Get(ctx context.Context, goalID uuid.UUID, out any) (bool, error)
	Set(ctx context.Context, goalID uuid.UUID, value any) error
	Invalidate(ctx context.Context, goalID uuid.UUID) error
	Close() error
}

type progressCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewProgressCache(log *logger.Logger) (ProgressCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttl := envutil.Seconds("PROGRESS_CACHE_TTL_SECONDS", 5*time.Minute)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &progressCache{
		log: log.With("service", "ProgressCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func progressKey(goalID uuid.UUID) string {
	return "goal_progress:" + goalID.String()
}

func (c *progressCache) Get(ctx context.Context, goalID uuid.UUID, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, progressKey(goalID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A stale or incompatible payload is treated as a miss.
		return false, nil
	}
	return true, nil
}

func (c *progressCache) Set(ctx context.Context, goalID uuid.UUID, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, progressKey(goalID), raw, c.ttl).Err()
}

func (c *progressCache) Invalidate(ctx context.Context, goalID uuid.UUID) error {
	return c.rdb.Del(ctx, progressKey(goalID)).Err()
}

func (c *progressCache) Close() error {
	return c.rdb.Close()
}
