package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	resp "task-manager/internal/transport/http/response"
)

// Timeout 处理函数没写响应时才补 504；已写的（比如 ez.Fail 映射过的）不动
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if c.Writer.Written() {
			return
		}
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTimeout, ""))
		case errors.Is(ctx.Err(), context.Canceled):
			c.AbortWithStatus(statusClientClosed)
		}
	}
}
