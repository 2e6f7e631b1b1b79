package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-manager/internal/domain"
	"task-manager/internal/service"
	"task-manager/internal/transport/http/ez"
)

type AdminHandler struct {
	users  *service.UserService
	tokens *service.TokenService
}

func NewAdminHandler(users *service.UserService, tokens *service.TokenService) *AdminHandler {
	return &AdminHandler{users: users, tokens: tokens}
}

func (h *AdminHandler) Mount(admin *gin.RouterGroup) {
	e := ez.New(admin)

	// --- GET /admin/v1/users  用户列表 ---
	type listQ struct {
		Offset int    `form:"offset,default=0"`
		Limit  int    `form:"limit,default=20"`
		Q      string `form:"q"` // 按 email/name 模糊搜
	}
	type listOut struct {
		Total int64         `json:"total"`
		Items []domain.User `json:"items"`
	}
	ez.RegisterAction(e, ez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listQ) (listOut, error) {
			us, total, err := h.users.List(c.Request.Context(), domain.UserQuery{Offset: in.Offset, Limit: in.Limit, Q: in.Q})
			if err != nil {
				return listOut{}, err
			}
			return listOut{Total: total, Items: us}, nil
		},
	})

	// --- GET /admin/v1/users/:id  资料 + 活跃会话数 ---
	type detailOut struct {
		User     domain.User `json:"user"`
		Sessions int         `json:"sessions"`
	}
	ez.RegisterAction(e, ez.Action[struct{}, detailOut]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (detailOut, error) {
			u, err := h.users.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				return detailOut{}, err
			}
			toks, err := h.tokens.Active(c.Request.Context(), u.ID)
			if err != nil {
				return detailOut{}, err
			}
			return detailOut{User: *u, Sessions: len(toks)}, nil
		},
	})

	// --- POST /admin/v1/users/:id/logoutAll  踢下线 ---
	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/logoutAll",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.users.LogoutAll(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	// --- DELETE /admin/v1/users/:id  级联删除 ---
	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.users.DeleteByID(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}
