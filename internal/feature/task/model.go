package task

import (
	"time"

	"task-manager/internal/feature/user"
)

// TaskModel 同时作为 /tasks CRUD 的绑定模型，json 字段即接口字段
type TaskModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	OwnerID     string    `gorm:"type:varchar(32);not null;index" json:"ownerId"`
	Description string    `gorm:"size:1024;not null" json:"description"`
	Completed   bool      `gorm:"not null;default:false" json:"completed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Owner *user.UserModel `gorm:"foreignKey:OwnerID" json:"-"`
}

func (TaskModel) TableName() string { return "tasks" }
