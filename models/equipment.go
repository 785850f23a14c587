package models

import (
	"context"
	"errors"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

var ErrEquipmentNotFound = utils.NewNotFoundError("equipment not found")

// Equipment is a customer device received for service.
type Equipment struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Code          string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	CustomerId    int       `gorm:"not null;index" json:"customer_id"`
	Customer      *Customer `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	EquipmentType string    `gorm:"size:50;not null" json:"equipment_type"`
	BrandId       *int      `gorm:"index" json:"brand_id"`
	Brand         *Brand    `gorm:"foreignKey:BrandId" json:"brand,omitempty"`
	Model         string    `gorm:"size:100" json:"model"`
	SerialNumber  *string   `gorm:"size:100;uniqueIndex" json:"serial_number"`
	Description   string    `gorm:"type:text" json:"description"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Equipment) TableName() string {
	return "equipment"
}

// Label names the device for listings, e.g. "LAPTOP Latitude 5420".
func (e Equipment) Label() string {
	return trimmed(e.EquipmentType + " " + e.Model)
}

type NewEquipment struct {
	CustomerId    int    `json:"customer_id" binding:"required"`
	EquipmentType string `json:"equipment_type" binding:"required,max=50"`
	BrandId       *int   `json:"brand_id"`
	Model         string `json:"model" binding:"max=100"`
	SerialNumber  string `json:"serial_number" binding:"max=100"`
	Description   string `json:"description"`
}

func (input *NewEquipment) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if err := utils.ValidateActiveResourceId[Customer](ctx, input.CustomerId); err != nil {
		return utils.NewValidationError("customer not found")
	}
	if input.BrandId != nil && *input.BrandId > 0 {
		if err := utils.ValidateResourceId[Brand](ctx, *input.BrandId); err != nil {
			return utils.NewValidationError("brand not found")
		}
	}
	// serial numbers are optional but unique when given
	if serial := trimmed(input.SerialNumber); serial != "" {
		if err := utils.ValidateUnique[Equipment](ctx, "serial_number", serial, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateEquipment(ctx context.Context, input *NewEquipment) (*Equipment, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	equipment := Equipment{
		CustomerId:    input.CustomerId,
		EquipmentType: trimmed(input.EquipmentType),
		BrandId:       input.BrandId,
		Model:         trimmed(input.Model),
		SerialNumber:  utils.NilIfEmpty(trimmed(input.SerialNumber)),
		Description:   input.Description,
		IsActive:      true,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := NextDocumentNumber(tx, DocumentKindEquipment, timeNow())
		if err != nil {
			return err
		}
		equipment.Code = code
		if err := tx.Create(&equipment).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "equipment", equipment.ID, "registered equipment "+equipment.Code)
	})
	if err != nil {
		return nil, err
	}
	return &equipment, nil
}

func UpdateEquipment(ctx context.Context, id int, input *NewEquipment) (*Equipment, error) {
	if err := utils.ValidateResourceId[Equipment](ctx, id); err != nil {
		return nil, ErrEquipmentNotFound
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Equipment{}).Where("id = ?", id).Updates(map[string]interface{}{
			"customer_id":    input.CustomerId,
			"equipment_type": trimmed(input.EquipmentType),
			"brand_id":       input.BrandId,
			"model":          trimmed(input.Model),
			"serial_number":  utils.NilIfEmpty(trimmed(input.SerialNumber)),
			"description":    input.Description,
		}).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "equipment", id, "updated equipment")
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Equipment](id); err != nil {
		config.LogError(config.GetLogger(), "equipment.go", "UpdateEquipment", "RemoveRedisItem", id, err)
	}
	return utils.FetchModel[Equipment](ctx, id, "Customer", "Brand")
}

func DeleteEquipment(ctx context.Context, id int) (*Equipment, error) {
	equipment, err := utils.FetchModel[Equipment](ctx, id)
	if err != nil {
		return nil, ErrEquipmentNotFound
	}

	db := config.GetDB()
	var referenced bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refErr error
		referenced, refErr = isReferenced(tx, id, map[string]string{
			"service_orders": "equipment_id",
			"warranties":     "equipment_id",
		})
		if refErr != nil || referenced {
			return refErr
		}
		if err := tx.Delete(equipment).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "equipment", id, "deleted equipment "+equipment.Code)
	})
	if err != nil {
		return nil, err
	}
	if referenced {
		return ToggleActiveEquipment(ctx, id, false)
	}
	if err := utils.RemoveRedisItem[Equipment](id); err != nil {
		config.LogError(config.GetLogger(), "equipment.go", "DeleteEquipment", "RemoveRedisItem", id, err)
	}
	return equipment, nil
}

func ToggleActiveEquipment(ctx context.Context, id int, isActive bool) (*Equipment, error) {
	return ToggleActiveModel[Equipment](ctx, "equipment", id, isActive)
}

func GetEquipment(ctx context.Context, id int) (*Equipment, error) {
	equipment, err := GetResource[Equipment](ctx, id, "Customer", "Brand")
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrEquipmentNotFound
	}
	return equipment, err
}

type EquipmentFilter struct {
	Search     string `form:"search"`
	CustomerId int    `form:"customer_id"`
	Pagination
}

func ListEquipment(ctx context.Context, filter EquipmentFilter) (*PaginatedList[Equipment], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Equipment{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("code LIKE ? OR model LIKE ? OR serial_number LIKE ? OR equipment_type LIKE ?", like, like, like, like)
	}
	if filter.CustomerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.CustomerId)
	}
	return paginate[Equipment](dbCtx.Order("id DESC"), filter.Pagination, "Customer", "Brand")
}
