package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// 客户端在排队时断开，沿用 nginx 的 499，只进访问日志
const statusClientClosed = 499

// ConcurrencyLimit 限制同时在处理的请求数（保护 DB 和 bcrypt）
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		// gin.Context 默认不转发 Done，排队要跟着请求的 ctx 走
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			c.AbortWithStatus(statusClientClosed)
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
