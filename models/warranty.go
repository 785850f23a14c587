package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// a warranty month counts as 30 days
const warrantyDaysPerMonth = 30

var ErrWarrantyNotFound = utils.NewNotFoundError("warranty not found")

type Warranty struct {
	ID          int            `gorm:"primary_key" json:"id"`
	Number      string         `gorm:"size:50;not null;uniqueIndex" json:"number"`
	ProductId   *int           `gorm:"index" json:"product_id"`
	Product     *Product       `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	EquipmentId *int           `gorm:"index" json:"equipment_id"`
	SaleId      *int           `gorm:"index" json:"sale_id"`
	CustomerId  int            `gorm:"not null;index" json:"customer_id"`
	Customer    *Customer      `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	Status      WarrantyStatus `gorm:"size:20;not null;index" json:"status"`
	StartsAt    time.Time      `gorm:"not null" json:"starts_at"`
	ExpiresAt   time.Time      `gorm:"not null;index" json:"expires_at"`
	Notes       string         `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (w Warranty) IsValidAt(at time.Time) bool {
	return w.Status == WarrantyStatusActive && !at.After(w.ExpiresAt)
}

// issueWarranty numbers and stores an ACTIVE warranty of months*30 days.
func issueWarranty(tx *gorm.DB, warranty *Warranty, months int, at time.Time) error {
	number, err := NextDocumentNumber(tx, DocumentKindWarranty, at)
	if err != nil {
		return err
	}
	warranty.Number = number
	warranty.Status = WarrantyStatusActive
	warranty.StartsAt = at
	warranty.ExpiresAt = at.AddDate(0, 0, months*warrantyDaysPerMonth)
	if err := tx.Create(warranty).Error; err != nil {
		return utils.ClassifyDBError(err)
	}
	return nil
}

func GetWarranty(ctx context.Context, id int) (*Warranty, error) {
	warranty, err := utils.FetchModel[Warranty](ctx, id, "Product", "Customer")
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrWarrantyNotFound
	}
	return warranty, err
}

type WarrantyFilter struct {
	CustomerId int            `form:"customer_id"`
	ProductId  int            `form:"product_id"`
	SaleId     int            `form:"sale_id"`
	Status     WarrantyStatus `form:"status"`
	Number     string         `form:"number"`
	Pagination
}

func ListWarranties(ctx context.Context, filter WarrantyFilter) (*PaginatedList[Warranty], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Warranty{})
	if filter.CustomerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.CustomerId)
	}
	if filter.ProductId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", filter.ProductId)
	}
	if filter.SaleId > 0 {
		dbCtx = dbCtx.Where("sale_id = ?", filter.SaleId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Number != "" {
		dbCtx = dbCtx.Where("number LIKE ?", "%"+filter.Number+"%")
	}
	return paginate[Warranty](dbCtx.Order("id DESC"), filter.Pagination, "Product", "Customer")
}

type WarrantyStatusInput struct {
	Status WarrantyStatus `json:"status" binding:"required"`
	Notes  string         `json:"notes"`
}

func UpdateWarrantyStatus(ctx context.Context, id int, input *WarrantyStatusInput) (*Warranty, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var warranty Warranty
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&warranty, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWarrantyNotFound
		}
		if err != nil {
			return err
		}
		if !warrantyTransitions.allows(warranty.Status, input.Status) {
			return utils.NewValidationError(fmt.Sprintf("warranty cannot move from %s to %s", warranty.Status, input.Status))
		}
		// a claim must be filed while the warranty still covers the item
		if warranty.Status == WarrantyStatusActive && input.Status != WarrantyStatusExpired && !warranty.IsValidAt(timeNow()) {
			return utils.NewValidationError("warranty has expired")
		}
		updates := map[string]interface{}{"status": input.Status}
		if notes := trimmed(input.Notes); notes != "" {
			updates["notes"] = notes
		}
		if err := tx.Model(&Warranty{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		activityType := ActivityTypeUpdate
		switch input.Status {
		case WarrantyStatusClaimed:
			activityType = ActivityTypeApprove
		case WarrantyStatusRejected:
			activityType = ActivityTypeReject
		}
		return createActivityLog(tx, activityType, "warranties", id,
			fmt.Sprintf("warranty %s %s -> %s", warranty.Number, warranty.Status, input.Status))
	})
	if err != nil {
		return nil, err
	}
	return GetWarranty(ctx, id)
}

// ExpireWarranties marks ACTIVE warranties whose coverage ended before now.
func ExpireWarranties(ctx context.Context, now time.Time) (int64, error) {
	res := config.GetDB().WithContext(ctx).Model(&Warranty{}).
		Where("status = ? AND expires_at < ?", WarrantyStatusActive, now).
		Update("status", WarrantyStatusExpired)
	return res.RowsAffected, res.Error
}
