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

const activeConfigurationKey = "GeneralConfiguration:active"

// singleton marker; the unique index on it allows one active row
const configurationSingletonKey = "ACTIVE"

type GeneralConfiguration struct {
	ID                int             `gorm:"primary_key" json:"id"`
	CompanyName       string          `gorm:"size:200;not null" json:"company_name"`
	CompanyTaxId      string          `gorm:"size:20" json:"company_tax_id"`
	CompanyAddress    string          `gorm:"type:text" json:"company_address"`
	CompanyPhone      string          `gorm:"size:20" json:"company_phone"`
	CompanyEmail      string          `gorm:"size:100" json:"company_email"`
	CompanyLogoUrl    string          `gorm:"size:255" json:"company_logo_url"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	Currency          string          `gorm:"size:3;not null;default:'COP'" json:"currency"`
	Timezone          string          `gorm:"size:50;not null;default:'America/Bogota'" json:"timezone"`
	InvoiceResolution string          `gorm:"size:100" json:"invoice_resolution"`
	InvoiceRangeFrom  int             `json:"invoice_range_from"`
	InvoiceRangeTo    int             `json:"invoice_range_to"`
	InvoicePrefix     string          `gorm:"size:10" json:"invoice_prefix"`
	IsActive          bool            `gorm:"not null;default:false;index" json:"is_active"`
	SingletonKey      *string         `gorm:"size:10;uniqueIndex" json:"-"`
	UpdatedBy         int             `json:"updated_by"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGeneralConfiguration struct {
	CompanyName       string          `json:"company_name" binding:"required,max=200"`
	CompanyTaxId      string          `json:"company_tax_id" binding:"max=20"`
	CompanyAddress    string          `json:"company_address"`
	CompanyPhone      string          `json:"company_phone" binding:"max=20"`
	CompanyEmail      string          `json:"company_email" binding:"omitempty,email"`
	CompanyLogoUrl    string          `json:"company_logo_url"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	Currency          string          `json:"currency" binding:"omitempty,len=3"`
	Timezone          string          `json:"timezone"`
	InvoiceResolution string          `json:"invoice_resolution"`
	InvoiceRangeFrom  int             `json:"invoice_range_from" binding:"gte=0"`
	InvoiceRangeTo    int             `json:"invoice_range_to" binding:"gte=0"`
	InvoicePrefix     string          `json:"invoice_prefix" binding:"max=10"`
}

// DefaultConfiguration is served while no configuration has been saved.
func DefaultConfiguration() *GeneralConfiguration {
	return &GeneralConfiguration{
		CompanyName: "DigitSoft",
		TaxRate:     utils.DefaultTaxRate,
		Currency:    "COP",
		Timezone:    utils.DefaultTimezone,
	}
}

func GetActiveConfiguration(ctx context.Context) (*GeneralConfiguration, error) {
	return activeConfiguration(config.GetDB().WithContext(ctx))
}

// activeConfiguration reads through db so it can run inside a caller's transaction.
func activeConfiguration(db *gorm.DB) (*GeneralConfiguration, error) {
	var cached *GeneralConfiguration
	exists, err := config.GetRedisObject(activeConfigurationKey, &cached)
	if err == nil && exists && cached != nil {
		return cached, nil
	}

	var result GeneralConfiguration
	err = db.Where("is_active = ?", true).Order("id DESC").First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultConfiguration(), nil
	}
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(activeConfigurationKey, &result, utils.GetCacheLifespan())
	return &result, nil
}

// activeTaxRate is the percentage applied to carts, sales and service invoices.
func activeTaxRate(db *gorm.DB) (decimal.Decimal, error) {
	cfg, err := activeConfiguration(db)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.TaxRate, nil
}

func (input *NewGeneralConfiguration) validate() error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewValidationError("tax rate must be between 0 and 100")
	}
	if input.InvoiceRangeTo > 0 && input.InvoiceRangeTo < input.InvoiceRangeFrom {
		return utils.NewValidationError("invoice range is inverted")
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return utils.NewValidationError("unknown timezone")
		}
	}
	return nil
}

// SaveConfiguration replaces the active configuration. Earlier rows are kept
// as history with is_active cleared.
func SaveConfiguration(ctx context.Context, input *NewGeneralConfiguration) (*GeneralConfiguration, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	key := configurationSingletonKey
	cfg := GeneralConfiguration{
		CompanyName:       trimmed(input.CompanyName),
		CompanyTaxId:      trimmed(input.CompanyTaxId),
		CompanyAddress:    input.CompanyAddress,
		CompanyPhone:      input.CompanyPhone,
		CompanyEmail:      input.CompanyEmail,
		CompanyLogoUrl:    input.CompanyLogoUrl,
		TaxRate:           input.TaxRate,
		Currency:          utils.DereferencePtr(utils.NilIfEmpty(input.Currency), "COP"),
		Timezone:          utils.DereferencePtr(utils.NilIfEmpty(input.Timezone), utils.DefaultTimezone),
		InvoiceResolution: input.InvoiceResolution,
		InvoiceRangeFrom:  input.InvoiceRangeFrom,
		InvoiceRangeTo:    input.InvoiceRangeTo,
		InvoicePrefix:     input.InvoicePrefix,
		IsActive:          true,
		SingletonKey:      &key,
		UpdatedBy:         userId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&GeneralConfiguration{}).
			Where("is_active = ? OR singleton_key IS NOT NULL", true).
			Updates(map[string]interface{}{"is_active": false, "singleton_key": nil}).Error; err != nil {
			return err
		}
		if err := tx.Create(&cfg).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeConfigure, "configuration", cfg.ID, "updated general configuration")
	})
	if err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(activeConfigurationKey)
	return &cfg, nil
}
