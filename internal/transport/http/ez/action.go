package ez

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"task-manager/internal/domain"
	resp "task-manager/internal/transport/http/response"
)

// 上下文 key，由鉴权中间件写入
const (
	CtxUserID = "userId"
	CtxUser   = "user"
	CtxToken  = "token"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / body 取
)

// AErr 处理函数直接指定返回码
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }

// Status 领域错误 → 业务码；未知错误一律 500 且不把内部信息回给客户端
func Status(err error) (int, string) {
	var ae *AErr
	var ve *domain.ValidationError
	var de *domain.DuplicateKeyError
	var mb *http.MaxBytesError
	switch {
	case errors.As(err, &ae):
		return ae.Code, ae.Error()
	case errors.As(err, &ve):
		return resp.CodeBadRequest, ve.Error()
	case errors.As(err, &de):
		return resp.CodeConflict, de.Error()
	case errors.As(err, &mb):
		return resp.CodeBadRequest, "request body too large"
	case errors.Is(err, context.DeadlineExceeded):
		return resp.CodeTimeout, ""
	case errors.Is(err, domain.ErrAuthentication):
		return resp.CodeUnauthorized, ""
	case errors.Is(err, domain.ErrNotFound):
		return resp.CodeNotFound, ""
	default:
		return resp.CodeServerError, ""
	}
}

// Fail 写错误响应；500 挂到 c.Errors 交给访问日志
func Fail(c *gin.Context, err error) {
	code, msg := Status(err)
	if code == resp.CodeServerError {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, resp.Error(code, msg))
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PATCH" | "DELETE"
	Path    string // 例："/users/login"、"/users/:id/logoutAll"
	Binder  Binder
	Auth    bool // 是否要求登录（检查 userId）
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth && c.GetString(CtxUserID) == "" {
			c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, ""))
			return
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default:
		}
		if bindErr != nil {
			var mb *http.MaxBytesError
			if errors.As(bindErr, &mb) {
				Fail(c, bindErr)
				return
			}
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// CurrentUser 鉴权中间件之后可用
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(CtxUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}
