package workflow

import (
	"errors"
	"time"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrIdempotencyInProgress = utils.NewConflictError("idempotency in progress", true)

// startedStaleAfter is how long a STARTED key blocks redelivery before it is
// considered abandoned by a crashed consumer.
const startedStaleAfter = 5 * time.Minute

// BeginIdempotency inserts STARTED for (handler, message). If SUCCEEDED exists,
// returns (true, nil) meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&key)
	if res.Error != nil && !utils.IsDuplicateKeyError(res.Error) {
		return false, res.Error
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return false, nil
	}

	var existing models.IdempotencyKey
	if err := tx.Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// another consumer holds it; ask the broker to redeliver later
		if time.Since(existing.UpdatedAt) < startedStaleAfter {
			return false, ErrIdempotencyInProgress
		}
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

// MarkIdempotencyFailed runs outside the failed transaction, so the key row
// may not exist yet; it is created as FAILED in that case.
func MarkIdempotencyFailed(tx *gorm.DB, handlerName, messageId string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if errors.Is(cause, ErrIdempotencyInProgress) {
		return nil
	}
	key := models.IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusFailed,
		LastError:   &msg,
	}
	err := tx.Create(&key).Error
	if err == nil || !utils.IsDuplicateKeyError(err) {
		return err
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ? AND status <> ?", handlerName, messageId, models.IdempotencyStatusSucceeded).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
