// Package ratelimit 实现按客户端标识的固定窗口限流。
//
// 窗口按 floor(now/W)*W 对齐，不做滑动窗口：客户端在窗口边界两侧
// 最多可以打出 2M 次请求，这是记录在案的已知取舍，不要"修复"。
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"mailbridge/backend/internal/storage"
)

const keyPrefix = "rl"

// Result 是一次限流判定的结果。
type Result struct {
	Allowed   bool
	Remaining int
}

// Limiter 固定窗口限流器。计数存放在外部存储中，进程无状态。
type Limiter struct {
	store  storage.RateCounterRepository
	window time.Duration
	max    int

	// now 可注入，便于测试窗口边界
	now func() time.Time
}

// NewLimiter 创建限流器。
//
// 参数:
//   - store: 计数存储
//   - window: 窗口长度
//   - max: 单窗口内允许的最大请求数
func NewLimiter(store storage.RateCounterRepository, window time.Duration, max int) *Limiter {
	return &Limiter{
		store:  store,
		window: window,
		max:    max,
		now:    time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Check 对客户端标识做一次限流判定并计数。
//
// 计数键 TTL 为 2 倍窗口长度，覆盖边界附近的读取。
func (l *Limiter) Check(ctx context.Context, identifier string) (Result, error) {
	windowSeconds := int64(l.window / time.Second)
	windowStart := l.now().Unix() / windowSeconds * windowSeconds
	key := fmt.Sprintf("%s:%s:%d", keyPrefix, identifier, windowStart)

	current, err := l.store.GetCounter(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("read counter: %w", err)
	}

	if current >= int64(l.max) {
		return Result{Allowed: false, Remaining: 0}, nil
	}

	if err := l.store.PutCounter(ctx, key, current+1, 2*l.window); err != nil {
		return Result{}, fmt.Errorf("write counter: %w", err)
	}

	return Result{Allowed: true, Remaining: l.max - int(current) - 1}, nil
}
