// Package redis 提供基于 Redis 的存储实现。
//
// 线程以 JSON 序列化后 SET，限流计数以十进制字符串 SET，
// TTL 交给 Redis 自身的过期机制。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

const threadKeyPrefix = "thread:"

// Store Redis 存储实现
type Store struct {
	client *redis.Client
}

// NewStore 创建 Redis 存储并验证连接。
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// SaveThread 以令牌为键写入线程 JSON。
func (s *Store) SaveThread(ctx context.Context, thread *domain.Thread, ttl time.Duration) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	return s.client.Set(ctx, threadKeyPrefix+thread.Token, data, ttl).Err()
}

// GetThread 按令牌读取线程。
func (s *Store) GetThread(ctx context.Context, token string) (*domain.Thread, error) {
	data, err := s.client.Get(ctx, threadKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrThreadNotFound
		}
		return nil, err
	}

	var thread domain.Thread
	if err := json.Unmarshal([]byte(data), &thread); err != nil {
		return nil, fmt.Errorf("unmarshal thread: %w", err)
	}
	return &thread, nil
}

// GetCounter 读取限流计数，键不存在时返回 0。
func (s *Store) GetCounter(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// PutCounter 写入限流计数。
func (s *Store) PutCounter(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Ping 检查 Redis 连接。
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	return s.client.Close()
}
