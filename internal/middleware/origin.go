package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailbridge/backend/internal/monitoring"
)

// OriginAllowlist 来源白名单中间件，只保护给定路径。
//
// 受保护路径上 Origin 头缺失或不在白名单中的请求一律 403 拒绝，
// 并计入 origin 结果的提交指标。
// 必须注册在 CORS 中间件之前，否则 CORS 层会先以空响应体拒绝，
// 调用方拿不到失败原因。OPTIONS 预检放行，交给 CORS 层应答。
func OriginAllowlist(metrics *monitoring.Metrics, allowedOrigins []string, protectedPaths ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	protected := make(map[string]bool, len(protectedPaths))
	for _, path := range protectedPaths {
		protected[path] = true
	}

	return func(c *gin.Context) {
		// FullPath 对未匹配的路由为空串，路由不存在时先报 not found
		if c.Request.Method == http.MethodOptions || !protected[c.FullPath()] {
			c.Next()
			return
		}

		if !allowed[c.GetHeader("Origin")] {
			metrics.RecordSubmission("origin")
			c.JSON(http.StatusForbidden, gin.H{
				"error": "origin rejected",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
