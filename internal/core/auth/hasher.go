package auth

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"task-manager/pkg/utils"
)

// Hasher bcrypt 是 CPU 密集型，用信号量限制同时进行的哈希数，超出的请求排队（可被 ctx 取消）
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher cost=0 用 bcrypt 默认值；concurrency<=0 取 GOMAXPROCS
func NewHasher(cost, concurrency int) *Hasher {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}
}

func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	return utils.HashPassword(plaintext, h.cost)
}

func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	return utils.CheckPassword(plaintext, hash), nil
}
