package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sender service.Notifier 的同形接口
type Sender interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendCancelation(ctx context.Context, email, name string) error
}

// Async fire-and-forget：立即返回 nil，后台投递，失败只记 WARN
type Async struct {
	next    Sender
	log     *zap.Logger
	timeout time.Duration
}

func NewAsync(next Sender, l *zap.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, log: l, timeout: timeout}
}

func (a *Async) SendWelcome(ctx context.Context, email, name string) error {
	a.spawn(ctx, KindWelcome, func(c context.Context) error { return a.next.SendWelcome(c, email, name) })
	return nil
}

func (a *Async) SendCancelation(ctx context.Context, email, name string) error {
	a.spawn(ctx, KindCancelation, func(c context.Context) error { return a.next.SendCancelation(c, email, name) })
	return nil
}

func (a *Async) spawn(ctx context.Context, kind string, fn func(context.Context) error) {
	// 请求结束后 ctx 会被取消，投递不能跟着取消
	base := context.WithoutCancel(ctx)
	go func() {
		c, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		if err := fn(c); err != nil {
			a.log.Warn("mail job publish failed", zap.String("kind", kind), zap.Error(err))
		}
	}()
}
