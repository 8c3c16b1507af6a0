// Package memory 提供进程内存储实现，用于开发环境和测试。
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store 内存存储实现。entry 带过期时间，读取时惰性淘汰。
type Store struct {
	mu      sync.RWMutex
	threads map[string]entry
	counts  map[string]entry

	// now 可注入，便于测试过期行为
	now func() time.Time
}

// NewStore 创建内存存储。
func NewStore() *Store {
	return &Store{
		threads: make(map[string]entry),
		counts:  make(map[string]entry),
		now:     time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// SaveThread 写入线程。
func (s *Store) SaveThread(_ context.Context, thread *domain.Thread, ttl time.Duration) error {
	data, err := marshalThread(thread)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.Token] = entry{value: data, expiresAt: s.now().Add(ttl)}
	return nil
}

// GetThread 读取线程，过期视为不存在。
func (s *Store) GetThread(_ context.Context, token string) (*domain.Thread, error) {
	s.mu.RLock()
	e, ok := s.threads[token]
	s.mu.RUnlock()

	if !ok || s.now().After(e.expiresAt) {
		return nil, storage.ErrThreadNotFound
	}
	return unmarshalThread(e.value)
}

// GetCounter 读取计数。
func (s *Store) GetCounter(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	e, ok := s.counts[key]
	s.mu.RUnlock()

	if !ok || s.now().After(e.expiresAt) {
		return 0, nil
	}
	count, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PutCounter 写入计数。
func (s *Store) PutCounter(_ context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key] = entry{value: strconv.FormatInt(value, 10), expiresAt: s.now().Add(ttl)}
	return nil
}

// Ping 内存存储总是可用。
func (s *Store) Ping(_ context.Context) error { return nil }

// Close 清空数据。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]entry)
	s.counts = make(map[string]entry)
	return nil
}
