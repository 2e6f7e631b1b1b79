package service

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"task-manager/internal/domain"
	"task-manager/pkg/utils"
)

// Notifier 账号事件通知；实现方负责异步和重试，返回的错误只记日志
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendCancelation(ctx context.Context, email, name string) error
}

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

// Patch nil 字段表示不修改
type Patch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Age      *int    `json:"age"`
}

var updatableFields = map[string]bool{"name": true, "email": true, "password": true, "age": true}

// PatchFromJSON 出现可更新字段以外的 key 直接拒绝，而不是静默忽略
func PatchFromJSON(raw []byte) (Patch, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return Patch{}, &domain.ValidationError{Reason: "body must be a JSON object"}
	}
	bad := make([]string, 0)
	for k := range keys {
		if !updatableFields[k] {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return Patch{}, &domain.ValidationError{Field: bad[0], Reason: "invalid updates"}
	}
	var p Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return Patch{}, &domain.ValidationError{Reason: "invalid updates"}
	}
	return p, nil
}

type UserService struct {
	users   domain.UserRepository
	hasher  PasswordHasher
	creds   *CredentialVerifier
	tokens  *TokenService
	cascade *OwnershipCascade
	avatars *AvatarService
	notify  Notifier
	log     *zap.Logger
}

type UserDeps struct {
	Users    domain.UserRepository
	Hasher   PasswordHasher
	Tokens   *TokenService
	Cascade  *OwnershipCascade
	Avatars  *AvatarService // 可为 nil
	Notifier Notifier       // 可为 nil
	Log      *zap.Logger
}

func NewUserService(d UserDeps) *UserService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &UserService{
		users:   d.Users,
		hasher:  d.Hasher,
		creds:   NewCredentialVerifier(d.Users, d.Hasher),
		tokens:  d.Tokens,
		cascade: d.Cascade,
		avatars: d.Avatars,
		notify:  d.Notifier,
		log:     d.Log,
	}
}

// Signup 建号并直接登录
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*domain.User, string, error) {
	u := &domain.User{ID: utils.NewID(), Name: in.Name, Email: in.Email, Age: in.Age}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return nil, "", err
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, "", err
	}
	hash, err := s.hasher.Hash(ctx, domain.NormalizePassword(in.Password))
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}
	s.sendWelcome(ctx, u)

	tok, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("user signed up", zap.String("userId", u.ID))
	return u, tok, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	u, err := s.creds.FindByCredentials(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	tok, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, tok, nil
}

// Logout 只撤销当前请求使用的 token
func (s *UserService) Logout(ctx context.Context, userID, token string) error {
	return s.tokens.RevokeOne(ctx, userID, token)
}

func (s *UserService) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, userID)
}

// Update 只写 patch 里出现的列，返回库里的最新值；失败时 u 保持原值
func (s *UserService) Update(ctx context.Context, u *domain.User, p Patch) (*domain.User, error) {
	next := *u
	var cols []string
	if p.Name != nil {
		next.Name = *p.Name
		cols = append(cols, domain.ColName)
	}
	if p.Email != nil {
		next.Email = *p.Email
		cols = append(cols, domain.ColEmail)
	}
	if p.Age != nil {
		next.Age = *p.Age
		cols = append(cols, domain.ColAge)
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if p.Password != nil {
		if err := domain.ValidatePassword(*p.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(ctx, domain.NormalizePassword(*p.Password))
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		next.PasswordHash = hash
		cols = append(cols, domain.ColPasswordHash)
	}
	if err := s.users.Update(ctx, &next, cols...); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, u.ID)
}

// Delete 级联删除后再清理头像、发注销通知；这两步失败不影响结果
func (s *UserService) Delete(ctx context.Context, u *domain.User) error {
	n, err := s.cascade.DeleteUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if s.avatars != nil && u.HasAvatar() {
		if err := s.avatars.purge(ctx, u.ID, u.AvatarKey); err != nil {
			s.log.Warn("avatar cleanup failed", zap.String("userId", u.ID), zap.Error(err))
		}
	}
	if s.notify != nil {
		if err := s.notify.SendCancelation(ctx, u.Email, u.Name); err != nil {
			s.log.Warn("cancelation mail failed", zap.String("userId", u.ID), zap.Error(err))
		}
	}
	s.log.Info("user deleted", zap.String("userId", u.ID), zap.Int64("tasks", n))
	return nil
}

// DeleteByID 管理端入口
func (s *UserService) DeleteByID(ctx context.Context, id string) error {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.Delete(ctx, u)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *UserService) List(ctx context.Context, q domain.UserQuery) ([]domain.User, int64, error) {
	return s.users.List(ctx, q)
}

// Profile 对外展示的字段；密码哈希和 token 不在 User 的 JSON 里
func (s *UserService) Profile(u *domain.User) domain.User { return *u }

func (s *UserService) sendWelcome(ctx context.Context, u *domain.User) {
	if s.notify == nil {
		return
	}
	if err := s.notify.SendWelcome(ctx, u.Email, u.Name); err != nil {
		s.log.Warn("welcome mail failed", zap.String("userId", u.ID), zap.Error(err))
	}
}
