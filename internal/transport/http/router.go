package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/middleware"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/service"
)

// contactPath 公开提交端点的路径
const contactPath = "/api/contact"

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	ContactService *service.ContactService
	HealthChecker  *health.HealthChecker
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	// 使用自定义中间件替代默认中间件
	router.Use(mm.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(mm.HTTPMetrics())

	// 来源白名单必须先于 CORS 层，见 OriginAllowlist 的说明
	router.Use(middleware.OriginAllowlist(deps.Metrics, deps.Config.CORS.AllowedOrigins, contactPath))

	// CORS 配置：响应头只对白名单内的来源发出，预检由这里应答
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	router.Use(gincors.New(corsConfig))

	contactHandler := NewContactHandler(deps.ContactService, deps.Logger)

	// 探针与指标
	router.GET("/live", gin.WrapF(deps.HealthChecker.Live()))
	router.GET("/ready", gin.WrapF(deps.HealthChecker.Ready()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// 提交端点：体积上限只作用在这条路由上
	router.POST(contactPath,
		middleware.BodySizeLimit(domain.MaxContactBodyBytes),
		contactHandler.Submit,
	)

	// 其余一律 not found
	router.NoRoute(func(c *gin.Context) {
		Fail(c, http.StatusNotFound, "not found")
	})

	return router
}
