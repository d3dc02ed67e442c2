package job

import (
	"context"
	"errors"
	"testing"

	"freelancepay/internal/config"
	"freelancepay/internal/infrastructure/mq"
	"freelancepay/internal/model"
	"freelancepay/internal/testutil"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createOutbox(t *testing.T, db *gorm.DB, recipientID int64, retryCount int) *model.OutboxMessage {
	t.Helper()

	msg := &model.OutboxMessage{
		MessageKey:  "key",
		Topic:       "marketplace.notification",
		RecipientID: recipientID,
		Payload:     `{"content":"hello"}`,
		Status:      model.OutboxStatusPending,
		RetryCount:  retryCount,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func loadOutbox(t *testing.T, db *gorm.DB, id int64) model.OutboxMessage {
	t.Helper()

	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg, id).Error)
	return msg
}

func TestOutboxSender_ProcessPendingMessages(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{Business: config.BusinessConfig{MaxRetryCount: 3}}

	sent := createOutbox(t, db, 1, 0)
	retried := createOutbox(t, db, 2, 0)
	exhausted := createOutbox(t, db, 3, 2)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))

	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg)
	sender.processPendingMessages(context.Background())
	require.NoError(t, producer.Close())

	assert.Equal(t, model.OutboxStatusSent, loadOutbox(t, db, sent.ID).Status)

	got := loadOutbox(t, db, retried.ID)
	assert.Equal(t, model.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	got = loadOutbox(t, db, exhausted.ID)
	assert.Equal(t, model.OutboxStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
}
