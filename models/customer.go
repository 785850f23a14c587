package models

import (
	"context"
	"errors"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

var ErrCustomerNotFound = utils.NewNotFoundError("customer not found")

type Customer struct {
	ID             int          `gorm:"primary_key" json:"id"`
	DocumentType   string       `gorm:"size:10;not null;default:'CC'" json:"document_type"`
	DocumentNumber string       `gorm:"size:20;not null;uniqueIndex" json:"document_number"`
	FirstName      string       `gorm:"size:100" json:"first_name"`
	LastName       string       `gorm:"size:100" json:"last_name"`
	BusinessName   string       `gorm:"size:200" json:"business_name"`
	CustomerType   CustomerType `gorm:"size:10;not null;default:'NATURAL'" json:"customer_type"`
	Email          string       `gorm:"size:100;index" json:"email"`
	Phone          string       `gorm:"size:20" json:"phone"`
	Address        string       `gorm:"type:text" json:"address"`
	City           string       `gorm:"size:100" json:"city"`
	UserId         *int         `gorm:"uniqueIndex" json:"user_id"`
	IsActive       bool         `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	DocumentType   string       `json:"document_type" binding:"omitempty,max=10"`
	DocumentNumber string       `json:"document_number" binding:"required,max=20"`
	FirstName      string       `json:"first_name" binding:"max=100"`
	LastName       string       `json:"last_name" binding:"max=100"`
	BusinessName   string       `json:"business_name" binding:"max=200"`
	CustomerType   CustomerType `json:"customer_type"`
	Email          string       `json:"email" binding:"omitempty,email,max=100"`
	Phone          string       `json:"phone" binding:"max=20"`
	Address        string       `json:"address"`
	City           string       `json:"city" binding:"max=100"`
}

// FullName is the business name for legal entities, otherwise first and last name.
func (c Customer) FullName() string {
	if c.CustomerType == CustomerTypeLegal && c.BusinessName != "" {
		return c.BusinessName
	}
	return trimmed(c.FirstName + " " + c.LastName)
}

func (input *NewCustomer) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.CustomerType == "" {
		input.CustomerType = CustomerTypeNatural
	}
	if !input.CustomerType.IsValid() {
		return utils.NewValidationError("invalid customer type")
	}
	if input.CustomerType == CustomerTypeLegal && trimmed(input.BusinessName) == "" {
		return utils.NewValidationError("business name is required for legal customers")
	}
	if input.CustomerType == CustomerTypeNatural && trimmed(input.FirstName) == "" {
		return utils.NewValidationError("first name is required")
	}
	if err := utils.ValidateContact(input.Email, input.Phone); err != nil {
		return err
	}
	// validate unique document
	if err := utils.ValidateUnique[Customer](ctx, "document_number", trimmed(input.DocumentNumber), id); err != nil {
		return err
	}
	return nil
}

func (input *NewCustomer) toCustomer() Customer {
	return Customer{
		DocumentType:   utils.DereferencePtr(utils.NilIfEmpty(trimmed(input.DocumentType)), "CC"),
		DocumentNumber: trimmed(input.DocumentNumber),
		FirstName:      trimmed(input.FirstName),
		LastName:       trimmed(input.LastName),
		BusinessName:   trimmed(input.BusinessName),
		CustomerType:   input.CustomerType,
		Email:          trimmed(input.Email),
		Phone:          utils.FormatPhoneNumber(input.Phone),
		Address:        input.Address,
		City:           trimmed(input.City),
		IsActive:       true,
	}
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	customer := input.toCustomer()

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&customer).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "customers", customer.ID, "created customer "+customer.FullName())
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateResourceId[Customer](ctx, id); err != nil {
		return nil, ErrCustomerNotFound
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	updated := input.toCustomer()

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Customer{}).Where("id = ?", id).Updates(map[string]interface{}{
			"document_type":   updated.DocumentType,
			"document_number": updated.DocumentNumber,
			"first_name":      updated.FirstName,
			"last_name":       updated.LastName,
			"business_name":   updated.BusinessName,
			"customer_type":   updated.CustomerType,
			"email":           updated.Email,
			"phone":           updated.Phone,
			"address":         updated.Address,
			"city":            updated.City,
		}).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "customers", id, "updated customer "+updated.FullName())
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Customer](id); err != nil {
		config.LogError(config.GetLogger(), "customer.go", "UpdateCustomer", "RemoveRedisItem", id, err)
	}
	return utils.FetchModel[Customer](ctx, id)
}

// DeleteCustomer deactivates customers with commercial history and removes the rest.
func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, ErrCustomerNotFound
	}

	db := config.GetDB()
	var referenced bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refErr error
		referenced, refErr = isReferenced(tx, id, map[string]string{
			"sales":          "customer_id",
			"invoices":       "customer_id",
			"service_orders": "customer_id",
			"equipment":      "customer_id",
			"warranties":     "customer_id",
			"carts":          "customer_id",
		})
		if refErr != nil || referenced {
			return refErr
		}
		if err := tx.Delete(customer).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "customers", id, "deleted customer "+customer.FullName())
	})
	if err != nil {
		return nil, err
	}
	if referenced {
		return ToggleActiveCustomer(ctx, id, false)
	}
	if err := utils.RemoveRedisItem[Customer](id); err != nil {
		config.LogError(config.GetLogger(), "customer.go", "DeleteCustomer", "RemoveRedisItem", id, err)
	}
	return customer, nil
}

func ToggleActiveCustomer(ctx context.Context, id int, isActive bool) (*Customer, error) {
	return ToggleActiveModel[Customer](ctx, "customers", id, isActive)
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	customer, err := GetResource[Customer](ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrCustomerNotFound
	}
	return customer, err
}

// GetCustomerByUserId resolves the customer profile of a logged in user.
func GetCustomerByUserId(ctx context.Context, userId int) (*Customer, error) {
	var customer Customer
	err := config.GetDB().WithContext(ctx).Where("user_id = ?", userId).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type CustomerFilter struct {
	Search       string       `form:"search"`
	CustomerType CustomerType `form:"customer_type"`
	City         string       `form:"city"`
	OnlyActive   bool         `form:"only_active"`
	Pagination
}

func ListCustomers(ctx context.Context, filter CustomerFilter) (*PaginatedList[Customer], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Customer{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("first_name LIKE ? OR last_name LIKE ? OR business_name LIKE ? OR document_number LIKE ? OR email LIKE ?",
			like, like, like, like, like)
	}
	if filter.CustomerType != "" {
		dbCtx = dbCtx.Where("customer_type = ?", filter.CustomerType)
	}
	if filter.City != "" {
		dbCtx = dbCtx.Where("city = ?", filter.City)
	}
	if filter.OnlyActive {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	return paginate[Customer](dbCtx.Order("id DESC"), filter.Pagination)
}
