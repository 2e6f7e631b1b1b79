package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"task-manager/internal/domain"
	"task-manager/internal/service"
	"task-manager/internal/transport/http/ez"
)

type UserHandler struct {
	users   *service.UserService
	avatars *service.AvatarService
}

func NewUserHandler(users *service.UserService, avatars *service.AvatarService) *UserHandler {
	return &UserHandler{users: users, avatars: avatars}
}

type sessionOut struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type loginIn struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Mount public 无需登录；authed 已挂鉴权中间件
func (h *UserHandler) Mount(public, authed *gin.RouterGroup) {
	pub := ez.New(public)
	me := ez.New(authed)

	ez.RegisterAction(pub, ez.Action[service.SignupInput, sessionOut]{
		Method: http.MethodPost,
		Path:   "/users",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.SignupInput) (sessionOut, error) {
			u, tok, err := h.users.Signup(c.Request.Context(), *in)
			if err != nil {
				return sessionOut{}, err
			}
			return sessionOut{User: *u, Token: tok}, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[loginIn, sessionOut]{
		Method: http.MethodPost,
		Path:   "/users/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (sessionOut, error) {
			u, tok, err := h.users.Login(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return sessionOut{}, err
			}
			return sessionOut{User: *u, Token: tok}, nil
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/logout",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			err := h.users.Logout(c.Request.Context(), c.GetString(ez.CtxUserID), c.GetString(ez.CtxToken))
			return gin.H{}, err
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/logoutAll",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			return gin.H{}, h.users.LogoutAll(c.Request.Context(), c.GetString(ez.CtxUserID))
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, domain.User]{
		Method: http.MethodGet,
		Path:   "/users/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (domain.User, error) {
			return h.users.Profile(ez.CurrentUser(c)), nil
		},
	})

	// 原始 body 自己解析，才能拒绝未知字段
	ez.RegisterAction(me, ez.Action[struct{}, domain.User]{
		Method: http.MethodPatch,
		Path:   "/users/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (domain.User, error) {
			raw, err := c.GetRawData()
			if err != nil {
				return domain.User{}, ez.BadRequest(err.Error())
			}
			p, err := service.PatchFromJSON(raw)
			if err != nil {
				return domain.User{}, err
			}
			u, err := h.users.Update(c.Request.Context(), ez.CurrentUser(c), p)
			if err != nil {
				return domain.User{}, err
			}
			return *u, nil
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, domain.User]{
		Method: http.MethodDelete,
		Path:   "/users/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (domain.User, error) {
			u := ez.CurrentUser(c)
			if err := h.users.Delete(c.Request.Context(), u); err != nil {
				return domain.User{}, err
			}
			return *u, nil
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/me/avatar",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			name, data, err := h.readAvatar(c)
			if err != nil {
				return nil, err
			}
			if _, err := h.avatars.Set(c.Request.Context(), ez.CurrentUser(c), name, data); err != nil {
				return nil, err
			}
			return gin.H{}, nil
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/me/avatar",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			_, err := h.avatars.Delete(c.Request.Context(), ez.CurrentUser(c))
			return gin.H{}, err
		},
	})

	// 图片直接返回二进制，不走统一包装
	public.GET("/users/:id/avatar", func(c *gin.Context) {
		b, err := h.avatars.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			ez.Fail(c, err)
			return
		}
		c.Data(http.StatusOK, service.AvatarContentType, b)
	})
}

func (h *UserHandler) readAvatar(c *gin.Context) (string, []byte, error) {
	tooLarge := &domain.ValidationError{Field: "avatar", Reason: "file too large"}
	fh, err := c.FormFile("avatar")
	if err != nil {
		// 请求体被 MaxBodyBytes 截断
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			return "", nil, tooLarge
		}
		return "", nil, &domain.ValidationError{Field: "avatar", Reason: "please upload an image"}
	}
	max := h.avatars.MaxBytes()
	if fh.Size > max {
		return "", nil, tooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.WithStack(err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return "", nil, errors.WithStack(err)
	}
	return fh.Filename, data, nil
}
