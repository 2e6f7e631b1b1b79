package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"task-manager/internal/core/server"
	"task-manager/internal/transport/http/handler"
	mdw "task-manager/internal/transport/http/middleware"
)

type APIDeps struct {
	Log     *zap.Logger
	Authn   mdw.RequestAuthenticator
	Users   *handler.UserHandler
	Modules *Registry
	// 单请求体上限；头像上传走 multipart，需要比头像上限略大
	MaxBody int64
}

func NewAPIEngine(d APIDeps) *gin.Engine {
	if d.MaxBody <= 0 {
		d.MaxBody = 4 << 20
	}
	r := server.NewRouter(d.Log, true)

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(d.MaxBody),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// 鉴权分组（/users/me、/tasks 必须挂这里，才能拿到 userId）
	authUser := api.Group("")
	authUser.Use(mdw.Authenticate(d.Authn))

	d.Users.Mount(api, authUser)
	d.Modules.MountAllAPI(authUser)

	return r
}
