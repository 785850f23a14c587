package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Consumer side statuses for OutboxRecord.ProcessingStatus.
const (
	OutboxProcessStatusPending   = "PENDING"
	OutboxProcessStatusProcessed = "PROCESSED"
	OutboxProcessStatusDead      = "DEAD"
)

var ErrOutboxNotReprocessable = utils.NewConflictError("outbox record is not dead or failed", false)

// Event types written by model operations and handled by the workflow package.
const (
	EventCheckoutCompleted     = "checkout.completed"
	EventSaleVoided            = "sale.voided"
	EventPurchaseReceived      = "purchase.received"
	EventServiceOrderInvoiced  = "service_order.invoiced"
	EventServiceOrderCompleted = "service_order.completed"
)

// OutboxRecord is written in the same transaction as the business change and
// published after commit by the dispatcher.
type OutboxRecord struct {
	ID                   int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType            string     `gorm:"size:50;not null;index" json:"event_type"`
	ReferenceType        string     `gorm:"size:30;not null;index:idx_outbox_reference,priority:1" json:"reference_type"`
	ReferenceId          int        `gorm:"not null;index:idx_outbox_reference,priority:2" json:"reference_id"`
	Payload              []byte     `json:"payload"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus        string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishAttempts      int        `gorm:"not null;default:0" json:"publish_attempts"`
	PublishedAt          *time.Time `gorm:"index" json:"published_at"`
	BrokerMessageId      *string    `gorm:"size:255" json:"broker_message_id"`
	NextAttemptAt        *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt             *time.Time `gorm:"index" json:"locked_at"`
	LockedBy             *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError     *string    `gorm:"type:text" json:"last_publish_error"`
	IsProcessed          bool       `gorm:"index;not null;default:false" json:"is_processed"`
	ProcessingStatus     string     `gorm:"size:20;index;not null;default:'PENDING'" json:"processing_status"`
	ProcessedAt          *time.Time `gorm:"index" json:"processed_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// enqueueEvent writes the outbox row inside tx. Publishing happens asynchronously
// after commit.
func enqueueEvent(tx *gorm.DB, eventType string, referenceType string, referenceId int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxRecord{
		EventType:        eventType,
		ReferenceType:    referenceType,
		ReferenceId:      referenceId,
		Payload:          data,
		PublishStatus:    OutboxPublishStatusPending,
		ProcessingStatus: OutboxProcessStatusPending,
		CorrelationId:    correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&record).Error
}

func (r OutboxRecord) ToEventMessage() config.EventMessage {
	return config.EventMessage{
		ID:            r.ID,
		EventType:     r.EventType,
		ReferenceType: r.ReferenceType,
		ReferenceId:   r.ReferenceId,
		Payload:       json.RawMessage(r.Payload),
		OccurredAt:    r.CreatedAt,
		CorrelationId: r.CorrelationId,
	}
}

// MarkOutboxProcessed flags the record once its consumer side effects committed.
func MarkOutboxProcessed(tx *gorm.DB, recordId int) error {
	now := timeNow()
	return tx.Model(&OutboxRecord{}).Where("id = ?", recordId).Updates(map[string]interface{}{
		"is_processed":            true,
		"processing_status":       OutboxProcessStatusProcessed,
		"processed_at":            &now,
		"last_process_error":      nil,
		"next_process_attempt_at": nil,
	}).Error
}

// MarkOutboxProcessFailed records a consumer failure. The record is retried
// at nextAttempt, or moved to DEAD when dead is set.
func MarkOutboxProcessFailed(ctx context.Context, recordId int, cause error, nextAttempt *time.Time, dead bool) error {
	msg := cause.Error()
	updates := map[string]interface{}{
		"last_process_error":      &msg,
		"process_attempts":        gorm.Expr("process_attempts + 1"),
		"next_process_attempt_at": nextAttempt,
		"locked_at":               nil,
		"locked_by":               nil,
	}
	if dead {
		updates["processing_status"] = OutboxProcessStatusDead
		updates["next_process_attempt_at"] = nil
	}
	return config.GetDB().WithContext(ctx).Model(&OutboxRecord{}).
		Where("id = ? AND is_processed = ?", recordId, false).
		Updates(updates).Error
}

type OutboxFilter struct {
	PublishStatus    string `form:"publish_status"`
	ProcessingStatus string `form:"processing_status"`
	ReferenceType string `form:"reference_type"`
	ReferenceId   int    `form:"reference_id"`
	Pagination
}

func ListOutboxRecords(ctx context.Context, filter OutboxFilter) (*PaginatedList[OutboxRecord], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&OutboxRecord{})
	if filter.PublishStatus != "" {
		dbCtx = dbCtx.Where("publish_status = ?", filter.PublishStatus)
	}
	if filter.ProcessingStatus != "" {
		dbCtx = dbCtx.Where("processing_status = ?", filter.ProcessingStatus)
	}
	if filter.ReferenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", filter.ReferenceId)
	}
	return paginate[OutboxRecord](dbCtx.Order("id DESC"), filter.Pagination)
}

// ReprocessOutbox puts a DEAD or FAILED record back in the dispatch queue and
// resets its consumer attempts.
func ReprocessOutbox(ctx context.Context, recordId int) (*OutboxRecord, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("id = ? AND is_processed = ?", recordId, false).
		Where("publish_status IN ? OR processing_status = ?",
			[]string{OutboxPublishStatusDead, OutboxPublishStatusFailed}, OutboxProcessStatusDead).
		Updates(map[string]interface{}{
			"publish_status":          OutboxPublishStatusPending,
			"publish_attempts":        0,
			"next_attempt_at":         nil,
			"processing_status":       OutboxProcessStatusPending,
			"process_attempts":        0,
			"next_process_attempt_at": nil,
			"locked_at":               nil,
			"locked_by":               nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrOutboxNotReprocessable
	}
	var rec OutboxRecord
	if err := db.WithContext(ctx).First(&rec, recordId).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
