package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tablet-tracker/internal/config"
)

const (
	BagStatusKeyFmt   = "bag_status:%d:%s:%s"
	bagStatusPOPrefix = "bag_status:%d:*"
	SettingsListKey   = "settings:all"
)

var (
	client     *redis.Client
	defaultTTL = 10 * time.Minute
)

// Init initializes the Redis connection. On failure the client stays nil and
// every helper below degrades to a no-op.
func Init(cfg config.RedisConfig) error {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if cfg.TTL > 0 {
		defaultTTL = cfg.TTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	return nil
}

// SetClient swaps the client in use, nil disables caching.
func SetClient(c *redis.Client) {
	client = c
}

func GetClient() *redis.Client {
	return client
}

func Close() {
	if client != nil {
		client.Close()
	}
}

func DefaultTTL() time.Duration {
	return defaultTTL
}

// BagStatusKey builds the cache key for one bag key's status report.
func BagStatusKey(poID int, productName, boxBag string) string {
	return fmt.Sprintf(BagStatusKeyFmt, poID, productName, boxBag)
}

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	keys, err := client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateKeys removes specific cache keys
func InvalidateKeys(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// InvalidateBagStatus clears cached bag reports for every PO given.
// Called when: RecordSubmission, ResolveReview, AssignAndVerify, Reassign, Backfill,
// CreateReceive, CreateBox, CreateBag, CloseBag, CloseReceive
func InvalidateBagStatus(ctx context.Context, poIDs ...int) {
	seen := make(map[int]bool, len(poIDs))
	for _, id := range poIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		InvalidatePattern(ctx, fmt.Sprintf(bagStatusPOPrefix, id))
	}
}

// InvalidateSettingCaches clears all setting-related caches.
// cards_per_turn changes machine totals, so bag reports go too.
func InvalidateSettingCaches(ctx context.Context) {
	InvalidatePattern(ctx, "settings:*")
	InvalidatePattern(ctx, "bag_status:*")
}

// IsHealthy returns true if Redis connection is working
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}
