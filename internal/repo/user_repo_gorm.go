package repo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"task-manager/internal/domain"
	"task-manager/internal/feature/user"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDupKey(err) {
			return &domain.DuplicateKeyError{Field: "email"}
		}
		return errors.WithStack(err)
	}
	u.CreatedAt, u.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByEmail 调用方负责 NormalizeEmail
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepo) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var m user.UserModel
	err := r.db.WithContext(ctx).Where(cond, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return toUserDomain(&m), nil
}

func (r *UserRepo) List(ctx context.Context, q domain.UserQuery) ([]domain.User, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	tx := r.db.WithContext(ctx).Model(&user.UserModel{})
	if s := strings.TrimSpace(q.Q); s != "" {
		like := "%" + s + "%"
		tx = tx.Where("email LIKE ? OR name LIKE ?", like, like)
	}
	tx = tx.Session(&gorm.Session{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, errors.WithStack(err)
	}
	var ms []user.UserModel
	if err := tx.Order("created_at desc").Order("id").Offset(q.Offset).Limit(q.Limit).Find(&ms).Error; err != nil {
		return nil, 0, errors.WithStack(err)
	}
	out := make([]domain.User, 0, len(ms))
	for i := range ms {
		out = append(out, *toUserDomain(&ms[i]))
	}
	return out, total, nil
}

var updatableCols = map[string]bool{
	domain.ColName:         true,
	domain.ColEmail:        true,
	domain.ColAge:          true,
	domain.ColPasswordHash: true,
}

// Update 只写 cols 里的列，其余列保持库里的值，不碰 user_tokens
func (r *UserRepo) Update(ctx context.Context, u *domain.User, cols ...string) error {
	if len(cols) == 0 {
		return nil
	}
	for _, c := range cols {
		if !updatableCols[c] {
			return errors.Errorf("column %q is not updatable", c)
		}
	}
	m := toUserModel(u)
	res := r.db.WithContext(ctx).Model(&user.UserModel{ID: u.ID}).
		Select(cols).
		Updates(m)
	if res.Error != nil {
		if isDupKey(res.Error) {
			return &domain.DuplicateKeyError{Field: "email"}
		}
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	u.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *UserRepo) SetAvatarKey(ctx context.Context, id, key string) error {
	res := r.db.WithContext(ctx).Model(&user.UserModel{}).
		Where("id = ?", id).
		Update("avatar_key", key)
	if res.Error != nil {
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&user.UserModel{})
	if res.Error != nil {
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toUserModel(u *domain.User) *user.UserModel {
	return &user.UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Age:          u.Age,
		PasswordHash: u.PasswordHash,
		AvatarKey:    u.AvatarKey,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toUserDomain(m *user.UserModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Age:          m.Age,
		PasswordHash: m.PasswordHash,
		AvatarKey:    m.AvatarKey,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
