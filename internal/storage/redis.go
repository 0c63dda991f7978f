package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// RedisStorage implements LabelStorage using Redis. Each image is a JSON
// record; a sorted set scored by save time indexes them.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "labeler"
	}
	return &RedisStorage{client: client, prefix: prefix}, nil
}

// labelsKey generates the Redis key for an image's record
func (s *RedisStorage) labelsKey(image string) string {
	return fmt.Sprintf("%s:labels:%s", s.prefix, image)
}

// indexKey generates the Redis key for the image index (sorted set)
func (s *RedisStorage) indexKey() string {
	return s.prefix + ":labels:index"
}

// Load implements LabelStorage
func (s *RedisStorage) Load(ctx context.Context, image string) ([]types.Box, error) {
	if err := ValidateName(image); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.labelsKey(image)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	return types.BoxesFromLabels(rec.Labels), nil
}

// Save implements LabelStorage
func (s *RedisStorage) Save(ctx context.Context, image string, boxes []types.Box) error {
	if err := ValidateName(image); err != nil {
		return err
	}
	rec := newRecord(image, boxes)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.labelsKey(image), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), &redis.Z{Score: float64(rec.SavedAt.Unix()), Member: image})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save labels: %w", err)
	}
	return nil
}

// Delete implements LabelStorage
func (s *RedisStorage) Delete(ctx context.Context, image string) (bool, error) {
	if err := ValidateName(image); err != nil {
		return false, err
	}
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.labelsKey(image))
	pipe.ZRem(ctx, s.indexKey(), image)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete labels: %w", err)
	}
	return del.Val() > 0, nil
}

// Summaries implements LabelStorage
func (s *RedisStorage) Summaries(ctx context.Context) (map[string]Summary, error) {
	images, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	out := make(map[string]Summary, len(images))
	if len(images) == 0 {
		return out, nil
	}

	keys := make([]string, len(images))
	for i, image := range images {
		keys[i] = s.labelsKey(image)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out[images[i]] = rec.summary()
	}
	return out, nil
}

// Health implements LabelStorage
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements LabelStorage
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
