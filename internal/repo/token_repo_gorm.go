package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"task-manager/internal/domain"
	"task-manager/internal/feature/user"
)

// TokenRepo 活跃 token 集合：增/删/清空都是单条 SQL
type TokenRepo struct{ db *gorm.DB }

func NewTokenRepo(db *gorm.DB) *TokenRepo { return &TokenRepo{db: db} }

var _ domain.TokenRepository = (*TokenRepo)(nil)

func (r *TokenRepo) Add(ctx context.Context, userID, token string) error {
	err := r.db.WithContext(ctx).Create(&user.TokenModel{UserID: userID, Token: token}).Error
	if err != nil {
		if isFKViolation(err) {
			return domain.ErrNotFound
		}
		return errors.WithStack(err)
	}
	return nil
}

// Remove 不存在时是 no-op
func (r *TokenRepo) Remove(ctx context.Context, userID, token string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&user.TokenModel{}).Error
	return errors.WithStack(err)
}

func (r *TokenRepo) Clear(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&user.TokenModel{}).Error
	return errors.WithStack(err)
}

func (r *TokenRepo) Exists(ctx context.Context, userID, token string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&user.TokenModel{}).
		Where("user_id = ? AND token = ?", userID, token).
		Count(&n).Error
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n > 0, nil
}

func (r *TokenRepo) List(ctx context.Context, userID string) ([]string, error) {
	var toks []string
	err := r.db.WithContext(ctx).Model(&user.TokenModel{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("token", &toks).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return toks, nil
}
