package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"task-manager/internal/core/auth"
	"task-manager/internal/domain"
)

// TokenService token 生命周期：issued → active → revoked（revoked 不可再激活）。
// 签名有效只是必要条件，token 还必须在该用户的活跃集合里。
type TokenService struct {
	jwt    *auth.JWTer
	tokens domain.TokenRepository
}

func NewTokenService(jwt *auth.JWTer, tokens domain.TokenRepository) *TokenService {
	return &TokenService{jwt: jwt, tokens: tokens}
}

// Issue 签发并写入活跃集合；写入失败则 token 不会被视为有效
func (s *TokenService) Issue(ctx context.Context, userID string) (string, error) {
	tok, err := s.jwt.Issue(userID)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	if err := s.tokens.Add(ctx, userID, tok); err != nil {
		return "", err
	}
	sessionEvents.WithLabelValues("issued").Inc()
	return tok, nil
}

// Verify 只校验签名/格式/过期，返回 token 里的用户 ID
func (s *TokenService) Verify(token string) (string, error) {
	c, err := s.jwt.Parse(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return c.UID, nil
}

func (s *TokenService) IsActiveForUser(ctx context.Context, userID, token string) (bool, error) {
	return s.tokens.Exists(ctx, userID, token)
}

// RevokeOne 重复撤销是 no-op
func (s *TokenService) RevokeOne(ctx context.Context, userID, token string) error {
	if err := s.tokens.Remove(ctx, userID, token); err != nil {
		return err
	}
	sessionEvents.WithLabelValues("revoked").Inc()
	return nil
}

func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.tokens.Clear(ctx, userID); err != nil {
		return err
	}
	sessionEvents.WithLabelValues("revoked_all").Inc()
	return nil
}

// Active 按签发顺序
func (s *TokenService) Active(ctx context.Context, userID string) ([]string, error) {
	return s.tokens.List(ctx, userID)
}
