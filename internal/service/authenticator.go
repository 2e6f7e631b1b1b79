package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"task-manager/internal/domain"
)

// BearerToken 解析 "Bearer <token>"，scheme 不区分大小写
func BearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

type Authenticator struct {
	users  domain.UserRepository
	tokens *TokenService
}

func NewAuthenticator(users domain.UserRepository, tokens *TokenService) *Authenticator {
	return &Authenticator{users: users, tokens: tokens}
}

// Authenticate 返回用户和本次使用的 token（单设备登出要撤销的正是它）。
// 所有鉴权类失败统一为 ErrAuthentication；存储故障原样返回。
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*domain.User, string, error) {
	tok, ok := BearerToken(header)
	if !ok {
		return nil, "", a.fail()
	}
	uid, err := a.tokens.Verify(tok)
	if err != nil {
		return nil, "", a.fail()
	}
	u, err := a.users.FindByID(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", a.fail()
	}
	if err != nil {
		return nil, "", err
	}
	active, err := a.tokens.IsActiveForUser(ctx, uid, tok)
	if err != nil {
		return nil, "", err
	}
	if !active {
		return nil, "", a.fail()
	}
	return u, tok, nil
}

func (a *Authenticator) fail() error {
	sessionEvents.WithLabelValues("auth_failed").Inc()
	return domain.ErrAuthentication
}
