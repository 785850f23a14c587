package models

import (
	"context"
	"fmt"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

// first find in redis, then in db, cache result
// (may return RecordNotFound error)
func GetResource[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		// a broken cache entry must not hide the row
		config.LogError(config.GetLogger(), "generics.go", "GetResource", "RetrieveRedis", id, err)
		result = nil
	}
	if result != nil {
		return result, nil
	}

	result, err = utils.FetchModel[T](ctx, id, associations...)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		config.LogError(config.GetLogger(), "generics.go", "GetResource", "StoreRedis", id, err)
	}
	return result, nil
}

// ToggleActiveModel flips is_active, logs the change and clears the cache.
func ToggleActiveModel[T any](ctx context.Context, module string, id int, isActive bool) (*T, error) {
	var result T
	db := config.GetDB()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&result, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&result).UpdateColumn("is_active", isActive).Error; err != nil {
			return err
		}
		if err := tx.First(&result, id).Error; err != nil {
			return err
		}
		activityType := ActivityTypeUpdate
		if !isActive {
			activityType = ActivityTypeDelete
		}
		return createActivityLog(tx, activityType, module, id,
			fmt.Sprintf("%s %d set active=%t", utils.GetTypeName[T](), id, isActive))
	})
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisBoth[T](id); err != nil {
		config.LogError(config.GetLogger(), "generics.go", "ToggleActiveModel", "RemoveRedisBoth", id, err)
	}
	return &result, nil
}

// isReferenced reports whether any of the given tables point at id via column.
func isReferenced(tx *gorm.DB, id int, refs map[string]string) (bool, error) {
	for table, column := range refs {
		var count int64
		if err := tx.Table(table).Where(column+" = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
