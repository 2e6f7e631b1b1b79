package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"task-manager/internal/core/server"
	"task-manager/internal/transport/http/handler"
	mdw "task-manager/internal/transport/http/middleware"
)

type AdminDeps struct {
	Log     *zap.Logger
	APIKey  string
	Admin   *handler.AdminHandler
	Modules *Registry
}

func NewAdminEngine(d AdminDeps) *gin.Engine {
	r := server.NewRouter(d.Log, false)

	r.Use(
		mdw.RequestID(),
		mdw.ConcurrencyLimit(50),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(30*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	// 管理端 v1（统一要求管理密钥）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AdminKey(d.APIKey))

	d.Admin.Mount(admin)
	d.Modules.MountAllAdmin(admin)

	return r
}
