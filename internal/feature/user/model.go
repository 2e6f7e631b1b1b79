package user

import (
	"time"
)

type UserModel struct {
	ID           string `gorm:"primaryKey;type:varchar(32)"`
	Name         string `gorm:"size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:191;not null"`
	Age          int    `gorm:"not null;default:0"`
	PasswordHash string `gorm:"size:100;not null"`
	AvatarKey    string `gorm:"size:191"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

// TokenModel 一行一个活跃会话；自增 ID 即签发顺序
type TokenModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:varchar(32);not null;index"`
	Token     string    `gorm:"size:512;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User *UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (TokenModel) TableName() string { return "user_tokens" }
