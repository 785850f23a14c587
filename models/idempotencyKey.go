package models

import "time"

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey deduplicates event deliveries per consumer.
// Unique constraint: (handler_name, message_id).
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	HandlerName string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	MessageId   string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"message_id"`
	Status      IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// CheckoutIdempotencyKey maps a client supplied key to the sale it produced,
// so a retried checkout returns the original sale.
type CheckoutIdempotencyKey struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Key       string    `gorm:"column:idempotency_key;size:100;not null;uniqueIndex" json:"key"`
	CartId    int       `gorm:"not null;index" json:"cart_id"`
	SaleId    int       `gorm:"not null" json:"sale_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
