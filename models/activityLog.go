package models

import (
	"context"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

type ActivityLog struct {
	ID           int          `gorm:"primary_key" json:"id"`
	UserId       *int         `gorm:"index" json:"user_id"`
	Username     string       `gorm:"size:150" json:"username"`
	ActivityType ActivityType `gorm:"size:20;not null;index" json:"activity_type"`
	Description  string       `gorm:"type:text;not null" json:"description"`
	Module       string       `gorm:"size:50;not null;index" json:"module"`
	RecordId     *int         `json:"record_id"`
	IpAddress    string       `gorm:"size:45" json:"ip_address"`
	UserAgent    string       `gorm:"type:text" json:"user_agent"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
}

// createActivityLog writes the audit row inside tx. The acting user and client
// are read from the statement context; anonymous actions are logged without a user.
func createActivityLog(tx *gorm.DB, activityType ActivityType, module string, recordId int, description string) error {
	ctx := tx.Statement.Context

	log := ActivityLog{
		ActivityType: activityType,
		Description:  description,
		Module:       module,
	}
	if recordId > 0 {
		log.RecordId = &recordId
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
		log.UserId = &userId
	}
	if username, ok := utils.GetUsernameFromContext(ctx); ok {
		log.Username = username
	} else if name, ok := utils.GetUserNameFromContext(ctx); ok {
		// background workers carry a display name only
		log.Username = name
	}
	if ip, ok := utils.GetClientIPFromContext(ctx); ok {
		log.IpAddress = ip
	}
	if ua, ok := utils.GetUserAgentFromContext(ctx); ok {
		log.UserAgent = ua
	}

	return tx.Create(&log).Error
}

// LogActivity records an action outside any other write, e.g. report exports.
func LogActivity(ctx context.Context, activityType ActivityType, module string, recordId int, description string) error {
	db := config.GetDB()
	return createActivityLog(db.WithContext(ctx), activityType, module, recordId, description)
}

type ActivityLogFilter struct {
	UserId       int          `form:"user_id"`
	Module       string       `form:"module"`
	ActivityType ActivityType `form:"activity_type"`
	Pagination
}

func ListActivityLogs(ctx context.Context, filter ActivityLogFilter) (*PaginatedList[ActivityLog], error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&ActivityLog{})
	if filter.UserId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", filter.UserId)
	}
	if filter.Module != "" {
		dbCtx = dbCtx.Where("module = ?", filter.Module)
	}
	if filter.ActivityType != "" {
		dbCtx = dbCtx.Where("activity_type = ?", filter.ActivityType)
	}
	return paginate[ActivityLog](dbCtx.Order("id DESC"), filter.Pagination)
}
