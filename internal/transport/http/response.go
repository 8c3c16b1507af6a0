package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 响应只有两种形态：成功 {ok:true}，失败 {error:<原因>}。

// OK 成功响应（200）
func OK(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Fail 失败响应，携带可读的失败原因
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
