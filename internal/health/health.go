package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailbridge/backend/internal/storage"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// goroutine 数量异常说明工作池或 SMTP 会话泄漏
	hc.health.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(200))

	// 存储连通性决定就绪状态
	hc.health.AddReadinessCheck("store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := hc.store.Ping(ctx); err != nil {
			hc.logger.Warn("store health check failed", zap.Error(err))
			return err
		}
		return nil
	})
}

// Live 返回存活探针处理器。
func (hc *HealthChecker) Live() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// Ready 返回就绪探针处理器。
func (hc *HealthChecker) Ready() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}
