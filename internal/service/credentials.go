package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"task-manager/internal/domain"
)

// PasswordHasher 由 auth.Hasher 实现（bcrypt + 并发上限）
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
}

type CredentialVerifier struct {
	users  domain.UserRepository
	hasher PasswordHasher

	dummyOnce sync.Once
	dummy     string
}

func NewCredentialVerifier(users domain.UserRepository, hasher PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{users: users, hasher: hasher}
}

// FindByCredentials 邮箱不存在和密码错误返回同一个 ErrAuthentication
func (v *CredentialVerifier) FindByCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := v.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		// 邮箱不存在也做一次同代价的比对，响应时间不暴露账号是否存在
		_, _ = v.hasher.Verify(ctx, password, v.dummyHash())
		return nil, domain.ErrAuthentication
	}
	if err != nil {
		return nil, err
	}
	ok, err := v.hasher.Verify(ctx, domain.NormalizePassword(password), u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAuthentication
	}
	return u, nil
}

// dummyHash 只算一次，不能用请求的 ctx：请求已取消时会留下空哈希
func (v *CredentialVerifier) dummyHash() string {
	v.dummyOnce.Do(func() {
		v.dummy, _ = v.hasher.Hash(context.Background(), "unused-dummy-secret")
	})
	return v.dummy
}
