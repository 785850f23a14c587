package models

import (
	"context"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceCatalogEntry is a priced technical service offered by the shop.
type ServiceCatalogEntry struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Code              string          `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name              string          `gorm:"size:200;not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Category          ServiceCategory `gorm:"size:20;not null;index" json:"category"`
	BasePrice         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"base_price"`
	EstimatedHours    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:1" json:"estimated_hours"`
	RequiresMaterials bool            `gorm:"not null;default:false" json:"requires_materials"`
	WarrantyDays      int             `gorm:"not null;default:0" json:"warranty_days"`
	IsActive          bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ServiceCatalogEntry) TableName() string {
	return "service_catalog"
}

type NewServiceCatalogEntry struct {
	Code              string          `json:"code" binding:"required,max=20"`
	Name              string          `json:"name" binding:"required,max=200"`
	Description       string          `json:"description"`
	Category          ServiceCategory `json:"category" binding:"required"`
	BasePrice         decimal.Decimal `json:"base_price"`
	EstimatedHours    decimal.Decimal `json:"estimated_hours"`
	RequiresMaterials bool            `json:"requires_materials"`
	WarrantyDays      *int            `json:"warranty_days" binding:"omitempty,gte=0"`
}

func (input *NewServiceCatalogEntry) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if !input.Category.IsValid() {
		return utils.NewValidationError("invalid service category")
	}
	if input.BasePrice.IsNegative() || input.EstimatedHours.IsNegative() {
		return utils.NewValidationError("price and hours cannot be negative")
	}
	return utils.ValidateUnique[ServiceCatalogEntry](ctx, "code", trimmed(input.Code), id)
}

func CreateServiceCatalogEntry(ctx context.Context, input *NewServiceCatalogEntry) (*ServiceCatalogEntry, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	hours := input.EstimatedHours
	if hours.IsZero() {
		hours = decimal.NewFromInt(1)
	}
	entry := ServiceCatalogEntry{
		Code:              trimmed(input.Code),
		Name:              trimmed(input.Name),
		Description:       input.Description,
		Category:          input.Category,
		BasePrice:         input.BasePrice,
		EstimatedHours:    hours,
		RequiresMaterials: input.RequiresMaterials,
		WarrantyDays:      utils.DereferencePtr(input.WarrantyDays, 30),
		IsActive:          true,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "service_catalog", entry.ID, "created service "+entry.Code)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func UpdateServiceCatalogEntry(ctx context.Context, id int, input *NewServiceCatalogEntry) (*ServiceCatalogEntry, error) {
	entry, err := utils.FetchModel[ServiceCatalogEntry](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ServiceCatalogEntry{}).Where("id = ?", id).Updates(map[string]interface{}{
			"code":               trimmed(input.Code),
			"name":               trimmed(input.Name),
			"description":        input.Description,
			"category":           input.Category,
			"base_price":         input.BasePrice,
			"estimated_hours":    input.EstimatedHours,
			"requires_materials": input.RequiresMaterials,
			"warranty_days":      utils.DereferencePtr(input.WarrantyDays, entry.WarrantyDays),
		}).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "service_catalog", id, "updated service "+input.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[ServiceCatalogEntry](id); err != nil {
		config.LogError(config.GetLogger(), "serviceCatalog.go", "UpdateServiceCatalogEntry", "RemoveRedisItem", id, err)
	}
	return utils.FetchModel[ServiceCatalogEntry](ctx, id)
}

// DeleteServiceCatalogEntry only deactivates; catalog entries are kept for history.
func DeleteServiceCatalogEntry(ctx context.Context, id int) (*ServiceCatalogEntry, error) {
	return ToggleActiveModel[ServiceCatalogEntry](ctx, "service_catalog", id, false)
}

func ToggleActiveServiceCatalogEntry(ctx context.Context, id int, isActive bool) (*ServiceCatalogEntry, error) {
	return ToggleActiveModel[ServiceCatalogEntry](ctx, "service_catalog", id, isActive)
}

func GetServiceCatalogEntry(ctx context.Context, id int) (*ServiceCatalogEntry, error) {
	return GetResource[ServiceCatalogEntry](ctx, id)
}

type ServiceCatalogFilter struct {
	Search     string          `form:"search"`
	Category   ServiceCategory `form:"category"`
	OnlyActive bool            `form:"only_active"`
	Pagination
}

func ListServiceCatalog(ctx context.Context, filter ServiceCatalogFilter) (*PaginatedList[ServiceCatalogEntry], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&ServiceCatalogEntry{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("name LIKE ? OR code LIKE ?", like, like)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	if filter.OnlyActive {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	return paginate[ServiceCatalogEntry](dbCtx.Order("category, name"), filter.Pagination)
}
