package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodySizeLimit 限制请求体大小的中间件。
//
// 超限属于校验类失败，按 400 报告。Content-Length 先行检查，
// 没有声明长度的请求由 MaxBytesReader 在读取时兜底。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "payload too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
