package workflow

import (
	"context"
	"errors"
	"strconv"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrInvalidEventMessage = utils.NewValidationError("event message requires id and event_type")

// systemContext is the identity consumers act under.
func systemContext(ctx context.Context, msg config.EventMessage) context.Context {
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	return ctx
}

// ProcessMessage applies the consumer side effects of one outbox event exactly
// once. Every delivery path (pull, push, rabbitmq, direct) ends here.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
	if msg.ID <= 0 || msg.EventType == "" {
		return ErrInvalidEventMessage
	}
	ctx = systemContext(ctx, msg)
	handlerName := msg.EventType
	messageId := strconv.Itoa(msg.ID)

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return models.MarkOutboxProcessed(tx, msg.ID)
		}
		if err := ProcessWorkflow(tx, logger, msg); err != nil {
			return err
		}
		if err := MarkIdempotencySucceeded(tx, handlerName, messageId); err != nil {
			return err
		}
		return models.MarkOutboxProcessed(tx, msg.ID)
	})
	if err != nil && !errors.Is(err, ErrIdempotencyInProgress) {
		if markErr := MarkIdempotencyFailed(db.WithContext(ctx), handlerName, messageId, err); markErr != nil {
			config.LogError(logger, "processMessage.go", "ProcessMessage", "mark idempotency failed", msg.ID, markErr)
		}
	}
	return err
}

// ProcessWorkflow routes an event to its handler. Unknown events are logged
// and acknowledged so they cannot block the queue.
func ProcessWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	switch msg.EventType {
	case models.EventCheckoutCompleted:
		return models.NotifyCheckoutCompleted(tx, msg)
	case models.EventSaleVoided:
		return models.NotifySaleVoided(tx, msg)
	case models.EventPurchaseReceived:
		return models.NotifyPurchaseReceived(tx, msg)
	case models.EventServiceOrderCompleted:
		return models.NotifyServiceOrderCompleted(tx, msg)
	case models.EventServiceOrderInvoiced:
		return models.NotifyServiceOrderInvoiced(tx, msg)
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "ProcessWorkflow",
			"event_type":     msg.EventType,
			"reference_type": msg.ReferenceType,
			"reference_id":   msg.ReferenceId,
			"message_id":     msg.ID,
		}).Warn("no handler for event type")
	}
	return nil
}
