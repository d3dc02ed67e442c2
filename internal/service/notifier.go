package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"freelancepay/internal/logger"
	"freelancepay/internal/model"
	"freelancepay/internal/repository"

	"gorm.io/gorm"
)

// Notification 发给某个用户的站内通知
type Notification struct {
	RecipientID int64  `json:"recipient_id"`
	SenderID    *int64 `json:"sender_id,omitempty"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Link        string `json:"link"`
}

// Notifier 通知出口，调用方不关心投递结果
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// OutboxNotifier 把通知写入 outbox 表，由 OutboxSender 投递到 Kafka
type OutboxNotifier struct {
	outboxRepo *repository.OutboxRepository
	topic      string
}

func NewOutboxNotifier(db *gorm.DB, topic string) *OutboxNotifier {
	return &OutboxNotifier{
		outboxRepo: repository.NewOutboxRepository(db),
		topic:      topic,
	}
}

func (n *OutboxNotifier) Notify(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(struct {
		Notification
		CreatedAt string `json:"created_at"`
	}{notification, time.Now().Format(time.RFC3339)})
	if err != nil {
		return err
	}

	msg := &model.OutboxMessage{
		MessageKey:  strconv.FormatInt(notification.RecipientID, 10),
		Topic:       n.topic,
		RecipientID: notification.RecipientID,
		Payload:     string(payload),
		Status:      model.OutboxStatusPending,
	}
	if err := n.outboxRepo.Create(ctx, nil, msg); err != nil {
		return fmt.Errorf("写入通知失败: %w", err)
	}
	return nil
}

// notify 发送通知，失败只记日志，不影响已经提交的业务
func notify(ctx context.Context, notifier Notifier, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		log := logger.Component("notifier")
		log.Warn().Err(err).
			Int64("recipient_id", n.RecipientID).
			Str("type", n.Type).
			Msg("通知发送失败")
	}
}
