package domain

import (
	"context"
	"time"
)

// User 账号。PasswordHash / AvatarKey 永不序列化；活跃 token 集合存在 TokenRepository。
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email" validate:"required,email,max=191"`
	Age          int       `json:"age" validate:"gte=0"`
	PasswordHash string    `json:"-"`
	AvatarKey    string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasAvatar 是否已上传头像
func (u *User) HasAvatar() bool { return u.AvatarKey != "" }

// 可由 Update 写入的列
const (
	ColName         = "name"
	ColEmail        = "email"
	ColAge          = "age"
	ColPasswordHash = "password_hash"
)

type UserQuery struct {
	Offset int
	Limit  int
	Q      string // 按 email/name 模糊匹配
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, q UserQuery) ([]User, int64, error)
	// Update 只写 cols 指定的资料列；cols 为空时不做任何写入
	Update(ctx context.Context, u *User, cols ...string) error
	// SetAvatarKey 单列更新，不依赖调用方手里的快照
	SetAvatarKey(ctx context.Context, id, key string) error
	Delete(ctx context.Context, id string) error
}

// TokenRepository 活跃 token 集合。每个操作在存储层原子完成（单行 insert/delete），
// 不做整表读改写，避免并发登录/登出丢更新。
type TokenRepository interface {
	Add(ctx context.Context, userID, token string) error
	Remove(ctx context.Context, userID, token string) error
	Clear(ctx context.Context, userID string) error
	Exists(ctx context.Context, userID, token string) (bool, error)
	// List 按签发顺序返回
	List(ctx context.Context, userID string) ([]string, error)
}
