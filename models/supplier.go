package models

import (
	"context"
	"errors"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrSupplierNotFound = utils.NewNotFoundError("supplier not found")

type Supplier struct {
	ID             int                  `gorm:"primary_key" json:"id"`
	DocumentType   SupplierDocumentType `gorm:"size:5;not null;default:'NIT'" json:"document_type"`
	DocumentNumber string               `gorm:"size:20;not null;uniqueIndex" json:"document_number"`
	BusinessName   string               `gorm:"size:200;not null;index" json:"business_name"`
	TradeName      string               `gorm:"size:200" json:"trade_name"`
	Phone          string               `gorm:"size:20" json:"phone"`
	Email          string               `gorm:"size:100" json:"email"`
	Website        string               `gorm:"size:255" json:"website"`
	Address        string               `gorm:"type:text" json:"address"`
	City           string               `gorm:"size:100" json:"city"`
	Country        string               `gorm:"size:100;not null;default:'Colombia'" json:"country"`
	Category       string               `gorm:"size:100;index" json:"category"`
	ContactName    string               `gorm:"size:200" json:"contact_name"`
	ContactPhone   string               `gorm:"size:20" json:"contact_phone"`
	PaymentTerms   string               `gorm:"size:100" json:"payment_terms"`
	LeadTimeDays   int                  `gorm:"not null;default:0" json:"lead_time_days"`
	Rating         decimal.Decimal      `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	IsActive       bool                 `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	DocumentType   SupplierDocumentType `json:"document_type"`
	DocumentNumber string               `json:"document_number" binding:"required,max=20"`
	BusinessName   string               `json:"business_name" binding:"required,max=200"`
	TradeName      string               `json:"trade_name" binding:"max=200"`
	Phone          string               `json:"phone" binding:"max=20"`
	Email          string               `json:"email" binding:"omitempty,email,max=100"`
	Website        string               `json:"website" binding:"omitempty,url,max=255"`
	Address        string               `json:"address"`
	City           string               `json:"city" binding:"max=100"`
	Country        string               `json:"country" binding:"max=100"`
	Category       string               `json:"category" binding:"max=100"`
	ContactName    string               `json:"contact_name" binding:"max=200"`
	ContactPhone   string               `json:"contact_phone" binding:"max=20"`
	PaymentTerms   string               `json:"payment_terms" binding:"max=100"`
	LeadTimeDays   int                  `json:"lead_time_days" binding:"gte=0"`
	Rating         decimal.Decimal      `json:"rating"`
}

func (input *NewSupplier) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.DocumentType == "" {
		input.DocumentType = SupplierDocumentTypeNIT
	}
	if !input.DocumentType.IsValid() {
		return utils.NewValidationError("invalid document type")
	}
	if input.Rating.IsNegative() || input.Rating.GreaterThan(decimal.NewFromInt(5)) {
		return utils.NewValidationError("rating must be between 0 and 5")
	}
	if err := utils.ValidateContact(input.Email, input.Phone); err != nil {
		return err
	}
	if err := utils.ValidateContact("", input.ContactPhone); err != nil {
		return err
	}
	return utils.ValidateUnique[Supplier](ctx, "document_number", trimmed(input.DocumentNumber), id)
}

func (input *NewSupplier) toSupplier() Supplier {
	return Supplier{
		DocumentType:   input.DocumentType,
		DocumentNumber: trimmed(input.DocumentNumber),
		BusinessName:   trimmed(input.BusinessName),
		TradeName:      trimmed(input.TradeName),
		Phone:          utils.FormatPhoneNumber(input.Phone),
		Email:          trimmed(input.Email),
		Website:        trimmed(input.Website),
		Address:        input.Address,
		City:           trimmed(input.City),
		Country:        utils.DereferencePtr(utils.NilIfEmpty(trimmed(input.Country)), "Colombia"),
		Category:       trimmed(input.Category),
		ContactName:    trimmed(input.ContactName),
		ContactPhone:   utils.FormatPhoneNumber(input.ContactPhone),
		PaymentTerms:   trimmed(input.PaymentTerms),
		LeadTimeDays:   input.LeadTimeDays,
		Rating:         input.Rating,
		IsActive:       true,
	}
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	supplier := input.toSupplier()

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&supplier).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "suppliers", supplier.ID, "created supplier "+supplier.BusinessName)
	})
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	if err := utils.ValidateResourceId[Supplier](ctx, id); err != nil {
		return nil, ErrSupplierNotFound
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	updated := input.toSupplier()

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Supplier{}).Where("id = ?", id).Select(
			"document_type", "document_number", "business_name", "trade_name", "phone", "email",
			"website", "address", "city", "country", "category", "contact_name", "contact_phone",
			"payment_terms", "lead_time_days", "rating",
		).Updates(&updated).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "suppliers", id, "updated supplier "+trimmed(input.BusinessName))
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Supplier](id); err != nil {
		config.LogError(config.GetLogger(), "supplier.go", "UpdateSupplier", "RemoveRedisItem", id, err)
	}
	return utils.FetchModel[Supplier](ctx, id)
}

func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, ErrSupplierNotFound
	}

	db := config.GetDB()
	var referenced bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refErr error
		referenced, refErr = isReferenced(tx, id, map[string]string{"purchases": "supplier_id"})
		if refErr != nil || referenced {
			return refErr
		}
		if err := tx.Delete(supplier).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "suppliers", id, "deleted supplier "+supplier.BusinessName)
	})
	if err != nil {
		return nil, err
	}
	if referenced {
		return ToggleActiveSupplier(ctx, id, false)
	}
	if err := utils.RemoveRedisItem[Supplier](id); err != nil {
		config.LogError(config.GetLogger(), "supplier.go", "DeleteSupplier", "RemoveRedisItem", id, err)
	}
	return supplier, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {
	return ToggleActiveModel[Supplier](ctx, "suppliers", id, isActive)
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	supplier, err := GetResource[Supplier](ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrSupplierNotFound
	}
	return supplier, err
}

type SupplierFilter struct {
	Search     string `form:"search"`
	Category   string `form:"category"`
	OnlyActive bool   `form:"only_active"`
	Pagination
}

func ListSuppliers(ctx context.Context, filter SupplierFilter) (*PaginatedList[Supplier], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Supplier{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("business_name LIKE ? OR trade_name LIKE ? OR document_number LIKE ?", like, like, like)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	if filter.OnlyActive {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	return paginate[Supplier](dbCtx.Order("business_name"), filter.Pagination)
}
