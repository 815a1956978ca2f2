package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/truecar-kr/truecar-backend/config"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"addr": cfg.Addr(),
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"addr": cfg.Addr(),
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// ViewMarkers remembers when a viewer session last counted a review view.
type ViewMarkers struct {
	rdb *redis.Client
}

func NewViewMarkers(rdb *redis.Client) *ViewMarkers {
	return &ViewMarkers{rdb: rdb}
}

func viewMarkerKey(session, reviewID string) string {
	return fmt.Sprintf("review_viewed:%s:%s", session, reviewID)
}

// TryMark sets the marker only when none is live (SET NX); the key expires
// with the dedup window. ok=false means the view was already counted.
func (m *ViewMarkers) TryMark(ctx context.Context, session, reviewID string, at time.Time, window time.Duration) (bool, error) {
	return m.rdb.SetNX(ctx, viewMarkerKey(session, reviewID), strconv.FormatInt(at.UnixMilli(), 10), window).Result()
}

// Release drops a marker so the next view counts again.
func (m *ViewMarkers) Release(ctx context.Context, session, reviewID string) error {
	return m.rdb.Del(ctx, viewMarkerKey(session, reviewID)).Err()
}

// Cache stores JSON values under a key prefix.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

func NewCache(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

// GetJSON decodes the cached value into dest. ok=false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, full...).Err()
}
