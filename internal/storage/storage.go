// Package storage 定义线程与限流计数的持久化接口。
//
// 两类记录都是带 TTL 的 KV 条目，过期由存储端自动淘汰，
// 没有显式删除路径。所有跨请求状态都在这里，进程内不共享可变状态。
package storage

import (
	"context"
	"errors"
	"time"

	"mailbridge/backend/internal/domain"
)

var (
	// ErrThreadNotFound 表示令牌没有对应的线程记录。
	ErrThreadNotFound = errors.New("thread not found")
)

// ThreadRepository 提供会话线程的读写。
type ThreadRepository interface {
	// SaveThread 以令牌为键写入线程，带 TTL。重复写入覆盖旧值（last-writer-wins）。
	SaveThread(ctx context.Context, thread *domain.Thread, ttl time.Duration) error

	// GetThread 按令牌读取线程，不存在或已过期时返回 ErrThreadNotFound。
	GetThread(ctx context.Context, token string) (*domain.Thread, error)
}

// RateCounterRepository 提供固定窗口计数器的读写。
//
// 写入是简单的 put 而非原子自增：并发下丢失一次计数只会让限额
// 略微宽松，属于可接受的竞态。
type RateCounterRepository interface {
	// GetCounter 读取计数，键不存在时返回 0。
	GetCounter(ctx context.Context, key string) (int64, error)

	// PutCounter 写入计数，带 TTL。
	PutCounter(ctx context.Context, key string, value int64, ttl time.Duration) error
}

// Store 聚合全部存储能力。
type Store interface {
	ThreadRepository
	RateCounterRepository

	// Ping 用于就绪检查。
	Ping(ctx context.Context) error
	Close() error
}
