package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"memeshare/api/internal/config"
)

const (
	contentKeyPrefix = "meme:content:"
	fieldType        = "type"
	fieldData        = "data"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Content is a cached copy of hosted image bytes.
type Content struct {
	Data        []byte
	ContentType string
}

// ContentCache keeps proxied image bytes keyed by image id.
type ContentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewContentCache(rdb *redis.Client, ttl time.Duration) *ContentCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ContentCache{rdb: rdb, ttl: ttl}
}

// Get returns nil on a miss.
func (c *ContentCache) Get(ctx context.Context, imageID int64) (*Content, error) {
	values, err := c.rdb.HGetAll(ctx, contentKey(imageID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	data, ok := values[fieldData]
	if !ok {
		return nil, nil
	}
	return &Content{Data: []byte(data), ContentType: values[fieldType]}, nil
}

func (c *ContentCache) Set(ctx context.Context, imageID int64, content Content) error {
	key := contentKey(imageID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldType, content.ContentType, fieldData, content.Data)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *ContentCache) Invalidate(ctx context.Context, imageID int64) error {
	if err := c.rdb.Del(ctx, contentKey(imageID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func contentKey(imageID int64) string {
	return contentKeyPrefix + strconv.FormatInt(imageID, 10)
}
