package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWorkerPool_StopDrainsSubmittedTasks(t *testing.T) {
	p := NewWorkerPool(2, 16, zap.NewNop())
	p.Start(context.Background())

	var done atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func() { done.Add(1) })
	}

	p.Stop()
	assert.Equal(t, int64(10), done.Load())
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	p := NewWorkerPool(1, 4, zap.NewNop())
	p.Start(context.Background())

	var done atomic.Bool
	p.Submit(func() { panic("boom") })
	p.Submit(func() { done.Store(true) })

	p.Stop()
	assert.True(t, done.Load())
}

func TestWorkerPool_TrySubmitFullQueue(t *testing.T) {
	p := NewWorkerPool(1, 1, zap.NewNop())
	// 不启动 worker，队列容量 1

	assert.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
}
