package repo

import (
	"context"

	"gorm.io/gorm"

	"task-manager/internal/domain"
	"task-manager/internal/feature/task"
	"task-manager/internal/feature/user"
)

// Repos 绑定到同一个 *gorm.DB（普通连接或事务）
type Repos struct{ db *gorm.DB }

func NewRepos(db *gorm.DB) *Repos { return &Repos{db: db} }

func (r *Repos) Users() domain.UserRepository   { return NewUserRepo(r.db) }
func (r *Repos) Tokens() domain.TokenRepository { return NewTokenRepo(r.db) }
func (r *Repos) Tasks() domain.TaskRepository   { return NewTaskRepo(r.db) }

type TxManager struct{ db *gorm.DB }

func NewTxManager(db *gorm.DB) *TxManager { return &TxManager{db: db} }

var _ domain.TransactionManager = (*TxManager)(nil)

// Execute fn 出错或 panic 都会回滚
func (m *TxManager) Execute(ctx context.Context, fn func(r domain.Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

// AutoMigrate 建表顺序：users → user_tokens → tasks
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&user.UserModel{}, &user.TokenModel{}, &task.TaskModel{})
}
