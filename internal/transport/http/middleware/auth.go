package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"task-manager/internal/domain"
	"task-manager/internal/transport/http/ez"
	resp "task-manager/internal/transport/http/response"
)

// RequestAuthenticator 由 service.Authenticator 实现
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, authorization string) (*domain.User, string, error)
}

// Authenticate 通过后写入 userId / user / token
func Authenticate(a RequestAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, tok, err := a.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if errors.Is(err, domain.ErrAuthentication) {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, ""))
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, ""))
			return
		}
		c.Set(ez.CtxUserID, u.ID)
		c.Set(ez.CtxUser, u)
		c.Set(ez.CtxToken, tok)
		c.Next()
	}
}

// AdminKey 管理端静态密钥；未配置时全部拒绝
func AdminKey(key string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(key))
	return func(c *gin.Context) {
		scheme, got, _ := strings.Cut(c.GetHeader("Authorization"), " ")
		if len(want) == 0 || !strings.EqualFold(scheme, "Bearer") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, ""))
			return
		}
		c.Next()
	}
}
