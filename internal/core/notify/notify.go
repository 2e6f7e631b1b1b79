// Package notify 账号相关的出站通知（欢迎/注销邮件）。这里只负责把任务投递到队列，
// 真正发邮件的消费者不在本服务内。
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	KindWelcome     = "welcome"
	KindCancelation = "cancelation"
)

// MailJob 队列消息体
type MailJob struct {
	Kind  string    `json:"kind"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	At    time.Time `json:"at"`
}

// Publisher 与具体 broker 无关
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Mailer 把邮件任务序列化后投递到 queue
type Mailer struct {
	pub   Publisher
	queue string
}

func NewMailer(pub Publisher, queue string) *Mailer {
	return &Mailer{pub: pub, queue: queue}
}

func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	return m.send(ctx, KindWelcome, email, name)
}

func (m *Mailer) SendCancelation(ctx context.Context, email, name string) error {
	return m.send(ctx, KindCancelation, email, name)
}

func (m *Mailer) send(ctx context.Context, kind, email, name string) error {
	b, err := json.Marshal(MailJob{Kind: kind, Email: email, Name: name, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = m.pub.Publish(ctx, m.queue, b, map[string]string{"kind": kind})
	return err
}

// LogPublisher 未配置 broker 时使用：只打日志
type LogPublisher struct{ L *zap.Logger }

func (p LogPublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.L.Info("mail job (no broker configured)",
		zap.String("queue", channel), zap.String("kind", attrs["kind"]), zap.ByteString("body", data))
	return "", nil
}

func (LogPublisher) Close() error { return nil }
