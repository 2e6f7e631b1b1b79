package domain

import (
	"context"
	"time"
)

// Task 归属某个用户的资源；OwnerID 必须指向存在的用户
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	FindByOwner(ctx context.Context, ownerID string) ([]Task, error)
	DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error)
}

// Repositories 同一事务内的仓储集合
type Repositories interface {
	Users() UserRepository
	Tokens() TokenRepository
	Tasks() TaskRepository
}

// TransactionManager fn 返回错误即回滚
type TransactionManager interface {
	Execute(ctx context.Context, fn func(r Repositories) error) error
}
