package service

import (
	"context"

	"task-manager/internal/domain"
)

// OwnershipCascade 删除用户：tasks → tokens → user 同一事务内完成，
// 任一步失败整体回滚，不会出现"用户没了任务还在"或反过来。
type OwnershipCascade struct {
	tx domain.TransactionManager
}

func NewOwnershipCascade(tx domain.TransactionManager) *OwnershipCascade {
	return &OwnershipCascade{tx: tx}
}

// DeleteUser 返回被删除的任务数
func (c *OwnershipCascade) DeleteUser(ctx context.Context, userID string) (int64, error) {
	var removed int64
	err := c.tx.Execute(ctx, func(r domain.Repositories) error {
		n, err := r.Tasks().DeleteAllByOwner(ctx, userID)
		if err != nil {
			return err
		}
		if err := r.Tokens().Clear(ctx, userID); err != nil {
			return err
		}
		if err := r.Users().Delete(ctx, userID); err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
