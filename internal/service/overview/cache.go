package overview

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/metrics-hub/internal/domain"
)

const (
	cachePrefix = "metrics-hub:overview:"
	versionKey  = cachePrefix + "version"
)

// cache stores computed overviews in Redis under a version counter.
type cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func (c *cache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis GET %s: %w", versionKey, err)
	}
	return v, nil
}

func (c *cache) key(version int64, mode string, q Query) string {
	names := make([]string, len(q.Platforms))
	for i, p := range q.Platforms {
		names[i] = string(p)
	}
	sort.Strings(names)
	return fmt.Sprintf("%sv%d:%s:%s:%s:%s", cachePrefix, version, mode, q.Range.Start, q.Range.End, strings.Join(names, ","))
}

// get returns nil without error on a miss.
func (c *cache) get(ctx context.Context, key string) (*domain.OverviewStats, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var stats domain.OverviewStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal overview %s: %w", key, err)
	}
	return &stats, nil
}

func (c *cache) set(ctx context.Context, key string, stats *domain.OverviewStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal overview: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (c *cache) invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("redis INCR %s: %w", versionKey, err)
	}
	return nil
}
