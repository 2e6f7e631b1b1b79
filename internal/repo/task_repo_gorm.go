package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"task-manager/internal/domain"
	"task-manager/internal/feature/task"
)

type TaskRepo struct{ db *gorm.DB }

func NewTaskRepo(db *gorm.DB) *TaskRepo { return &TaskRepo{db: db} }

var _ domain.TaskRepository = (*TaskRepo)(nil)

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	m := &task.TaskModel{ID: t.ID, OwnerID: t.OwnerID, Description: t.Description, Completed: t.Completed}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isFKViolation(err) {
			return domain.ErrNotFound
		}
		return errors.WithStack(err)
	}
	t.CreatedAt, t.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *TaskRepo) FindByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	var ms []task.TaskModel
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Order("id").Find(&ms).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out := make([]domain.Task, 0, len(ms))
	for _, m := range ms {
		out = append(out, domain.Task{
			ID: m.ID, OwnerID: m.OwnerID, Description: m.Description, Completed: m.Completed,
			CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
		})
	}
	return out, nil
}

func (r *TaskRepo) DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&task.TaskModel{})
	if res.Error != nil {
		return 0, errors.WithStack(res.Error)
	}
	return res.RowsAffected, nil
}
