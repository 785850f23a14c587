package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMessageAppliesSideEffectsOnce(t *testing.T) {
	ctx, db := setupTestDB(t)
	record := checkoutOnce(t, ctx, db)
	logger := config.GetLogger()

	require.NoError(t, ProcessMessage(ctx, logger, record.ToEventMessage()))
	first := countNotifications(t, db)
	assert.Positive(t, first)

	// redelivery is acknowledged without repeating the notifications
	require.NoError(t, ProcessMessage(ctx, logger, record.ToEventMessage()))
	assert.Equal(t, first, countNotifications(t, db))

	got := reload(t, db, record.ID)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, models.OutboxProcessStatusProcessed, got.ProcessingStatus)
	assert.NotNil(t, got.ProcessedAt)

	var key models.IdempotencyKey
	require.NoError(t, db.Where("handler_name = ? AND message_id = ?", models.EventCheckoutCompleted, fmt.Sprint(record.ID)).First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusSucceeded, key.Status)
}

func TestProcessMessageRejectsIncompleteMessages(t *testing.T) {
	ctx, _ := setupTestDB(t)
	err := ProcessMessage(ctx, nil, config.EventMessage{EventType: models.EventSaleVoided})
	assert.ErrorIs(t, err, ErrInvalidEventMessage)
}

func TestProcessMessageIgnoresUnknownEvents(t *testing.T) {
	ctx, db := setupTestDB(t)
	record := models.OutboxRecord{EventType: "customer.merged", ReferenceType: "customers", ReferenceId: 1, Payload: []byte(`{}`)}
	require.NoError(t, db.Create(&record).Error)

	require.NoError(t, ProcessMessage(ctx, nil, record.ToEventMessage()))
	assert.True(t, reload(t, db, record.ID).IsProcessed)
}

func TestFailedProcessingCanBeRetried(t *testing.T) {
	ctx, db := setupTestDB(t)
	record := models.OutboxRecord{EventType: models.EventSaleVoided, ReferenceType: "sales", ReferenceId: 9, Payload: []byte(`{`)}
	require.NoError(t, db.Create(&record).Error)

	err := ProcessMessage(ctx, nil, record.ToEventMessage())
	require.Error(t, err)

	var key models.IdempotencyKey
	require.NoError(t, db.Where("handler_name = ? AND message_id = ?", models.EventSaleVoided, fmt.Sprint(record.ID)).First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusFailed, key.Status)
	require.NotNil(t, key.LastError)

	// fix the payload; the FAILED key is reused
	require.NoError(t, db.Model(&models.OutboxRecord{}).Where("id = ?", record.ID).
		Update("payload", []byte(`{"sale_id":9,"number":"V202403150001","reason":"error de digitación"}`)).Error)
	require.NoError(t, ProcessMessage(ctx, nil, reload(t, db, record.ID).ToEventMessage()))

	require.NoError(t, db.First(&key, key.ID).Error)
	assert.Equal(t, models.IdempotencyStatusSucceeded, key.Status)
	assert.EqualValues(t, 1, countNotifications(t, db))
}

func TestBeginIdempotencyReportsInProgress(t *testing.T) {
	_, db := setupTestDB(t)
	require.NoError(t, db.Create(&models.IdempotencyKey{
		HandlerName: "sale.voided", MessageId: "77", Status: models.IdempotencyStatusStarted,
	}).Error)

	_, err := BeginIdempotency(db, "sale.voided", "77")
	assert.ErrorIs(t, err, ErrIdempotencyInProgress)

	// a stale STARTED key is taken over
	require.NoError(t, db.Exec("UPDATE idempotency_keys SET updated_at = ? WHERE message_id = ?",
		time.Now().UTC().Add(-time.Hour), "77").Error)
	skip, err := BeginIdempotency(db, "sale.voided", "77")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestDirectProcessorConsumesPendingRecords(t *testing.T) {
	ctx, db := setupTestDB(t)
	first := checkoutOnce(t, ctx, db)
	second := checkoutOnce(t, ctx, db)

	p := NewOutboxDirectProcessor(db, nil)
	assert.Equal(t, 2, p.processOnce(ctx))
	assert.Equal(t, 0, p.processOnce(ctx))

	for _, id := range []int{first.ID, second.ID} {
		got := reload(t, db, id)
		assert.True(t, got.IsProcessed)
		assert.Nil(t, got.LockedBy)
	}
}

func TestDirectProcessorBacksOffThenGivesUp(t *testing.T) {
	ctx, db := setupTestDB(t)
	record := models.OutboxRecord{EventType: models.EventPurchaseReceived, ReferenceType: "purchases", ReferenceId: 3, Payload: []byte(`not json`)}
	require.NoError(t, db.Create(&record).Error)

	p := NewOutboxDirectProcessor(db, nil)
	p.MaxAttempts = 2
	assert.Equal(t, 0, p.processOnce(ctx))

	got := reload(t, db, record.ID)
	assert.False(t, got.IsProcessed)
	assert.Equal(t, 1, got.ProcessAttempts)
	require.NotNil(t, got.NextProcessAttemptAt)
	assert.True(t, got.NextProcessAttemptAt.After(time.Now().UTC()))
	require.NotNil(t, got.LastProcessError)

	// not due yet
	assert.Equal(t, 0, p.processOnce(ctx))
	assert.Equal(t, 1, reload(t, db, record.ID).ProcessAttempts)

	require.NoError(t, db.Model(&models.OutboxRecord{}).Where("id = ?", record.ID).
		Update("next_process_attempt_at", time.Now().UTC().Add(-time.Second)).Error)
	p.processOnce(ctx)

	got = reload(t, db, record.ID)
	assert.Equal(t, models.OutboxProcessStatusDead, got.ProcessingStatus)
	assert.Equal(t, 2, got.ProcessAttempts)

	// dead records are skipped until reprocessed
	assert.Equal(t, 0, p.processOnce(ctx))
	reset, err := models.ReprocessOutbox(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxProcessStatusPending, reset.ProcessingStatus)
	assert.Zero(t, reset.ProcessAttempts)
}

func TestDispatcherPublishesAndRecordsBrokerId(t *testing.T) {
	ctx, db := setupTestDB(t)
	record := checkoutOnce(t, ctx, db)

	var published []config.EventMessage
	d := NewOutboxDispatcher(db, nil)
	d.Publish = func(_ context.Context, msg config.EventMessage) (string, error) {
		published = append(published, msg)
		return "broker-1", nil
	}

	assert.Equal(t, 1, d.dispatchOnce(ctx))
	require.Len(t, published, 1)
	assert.Equal(t, models.EventCheckoutCompleted, published[0].EventType)
	assert.Equal(t, record.CorrelationId, published[0].CorrelationId)

	got := reload(t, db, record.ID)
	assert.Equal(t, models.OutboxPublishStatusSent, got.PublishStatus)
	require.NotNil(t, got.BrokerMessageId)
	assert.Equal(t, "broker-1", *got.BrokerMessageId)
	assert.Equal(t, 1, got.PublishAttempts)
	assert.NotNil(t, got.PublishedAt)

	// sent records are not published again
	assert.Equal(t, 0, d.dispatchOnce(ctx))
	assert.Len(t, published, 1)
}

func TestDispatcherRetriesWithBackoffThenDead(t *testing.T) {
	ctx, db := setupTestDB(t)
	record := checkoutOnce(t, ctx, db)

	d := NewOutboxDispatcher(db, nil)
	d.MaxAttempts = 2
	d.Publish = func(context.Context, config.EventMessage) (string, error) {
		return "", errors.New("broker unavailable")
	}

	assert.Equal(t, 0, d.dispatchOnce(ctx))
	got := reload(t, db, record.ID)
	assert.Equal(t, models.OutboxPublishStatusFailed, got.PublishStatus)
	require.NotNil(t, got.NextAttemptAt)
	assert.WithinDuration(t, time.Now().UTC().Add(d.InitialBackoff), *got.NextAttemptAt, 2*time.Second)
	require.NotNil(t, got.LastPublishError)
	assert.Equal(t, "broker unavailable", *got.LastPublishError)

	require.NoError(t, db.Model(&models.OutboxRecord{}).Where("id = ?", record.ID).
		Update("next_attempt_at", time.Now().UTC().Add(-time.Second)).Error)
	d.dispatchOnce(ctx)
	got = reload(t, db, record.ID)
	assert.Equal(t, models.OutboxPublishStatusDead, got.PublishStatus)
	assert.Equal(t, 2, got.PublishAttempts)
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoff(1, 5*time.Second, time.Minute))
	assert.Equal(t, 20*time.Second, backoff(3, 5*time.Second, time.Minute))
	assert.Equal(t, time.Minute, backoff(10, 5*time.Second, time.Minute))
}

func TestDecodePushMessage(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"id":12,"event_type":"sale.voided","reference_type":"sales","reference_id":4}`))
	body := []byte(`{"message":{"data":"` + data + `","messageId":"pm-1"},"subscription":"projects/p/subscriptions/s"}`)

	m, err := DecodePushMessage(body)
	require.NoError(t, err)
	assert.Equal(t, 12, m.ID)
	assert.Equal(t, models.EventSaleVoided, m.EventType)
	assert.Equal(t, "pm-1", m.CorrelationId)

	_, err = DecodePushMessage([]byte(`{"message":{}}`))
	assert.Error(t, err)

	empty := base64.StdEncoding.EncodeToString([]byte(`{"reference_type":"sales"}`))
	_, err = DecodePushMessage([]byte(`{"message":{"data":"` + empty + `"}}`))
	assert.ErrorIs(t, err, ErrInvalidEventMessage)
}
