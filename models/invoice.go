package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// invoices are due this many days after issue
const invoiceDueDays = 30

var ErrInvoiceNotFound = utils.NewNotFoundError("invoice not found")

type Invoice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Number         string          `gorm:"size:50;not null;uniqueIndex" json:"number"`
	CustomerId     int             `gorm:"not null;index" json:"customer_id"`
	Customer       *Customer       `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	SaleId         *int            `gorm:"uniqueIndex" json:"sale_id"`
	Sale           *Sale           `gorm:"foreignKey:SaleId" json:"sale,omitempty"`
	ServiceOrderId *int            `gorm:"uniqueIndex" json:"service_order_id"`
	ServiceOrder   *ServiceOrder   `gorm:"foreignKey:ServiceOrderId" json:"service_order,omitempty"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	Discount       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Tax            decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"tax"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total"`
	Status         InvoiceStatus   `gorm:"size:20;not null;index" json:"status"`
	IssuedAt       time.Time       `gorm:"not null;index" json:"issued_at"`
	DueAt          time.Time       `gorm:"not null;index" json:"due_at"`
	PaidAt         *time.Time      `json:"paid_at"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// issueInvoice numbers and stores an ISSUED invoice inside tx.
func issueInvoice(tx *gorm.DB, invoice *Invoice, at time.Time) error {
	number, err := NextDocumentNumber(tx, DocumentKindInvoice, at)
	if err != nil {
		return err
	}
	invoice.Number = number
	invoice.Status = InvoiceStatusIssued
	invoice.IssuedAt = at
	invoice.DueAt = at.AddDate(0, 0, invoiceDueDays)
	if err := tx.Create(invoice).Error; err != nil {
		return utils.ClassifyDBError(err)
	}
	return nil
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	invoice, err := utils.FetchModel[Invoice](ctx, id, "Customer", "Sale", "Sale.Details", "Sale.Details.Product", "ServiceOrder")
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	return invoice, err
}

type InvoiceFilter struct {
	CustomerId int           `form:"customer_id"`
	Status     InvoiceStatus `form:"status"`
	Number     string        `form:"number"`
	From       string        `form:"fecha_inicio"`
	To         string        `form:"fecha_fin"`
	Pagination
}

func ListInvoices(ctx context.Context, filter InvoiceFilter) (*PaginatedList[Invoice], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Invoice{})
	if filter.CustomerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.CustomerId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Number != "" {
		dbCtx = dbCtx.Where("number LIKE ?", "%"+filter.Number+"%")
	}
	dbCtx, err := ApplyDateRange(ctx, dbCtx, "issued_at", filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	return paginate[Invoice](dbCtx.Order("issued_at DESC, id DESC"), filter.Pagination, "Customer")
}

type InvoiceStatusInput struct {
	Status InvoiceStatus `json:"status" binding:"required"`
}

func UpdateInvoiceStatus(ctx context.Context, id int, input *InvoiceStatusInput) (*Invoice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice Invoice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvoiceNotFound
		}
		if err != nil {
			return err
		}
		if !invoiceTransitions.allows(invoice.Status, input.Status) {
			return utils.NewValidationError(fmt.Sprintf("invoice cannot move from %s to %s", invoice.Status, input.Status))
		}
		updates := map[string]interface{}{"status": input.Status}
		if input.Status == InvoiceStatusPaid {
			now := timeNow()
			updates["paid_at"] = &now
		}
		if err := tx.Model(&Invoice{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeUpdate, "invoices", id,
			fmt.Sprintf("invoice %s %s -> %s", invoice.Number, invoice.Status, input.Status))
	})
	if err != nil {
		return nil, err
	}
	return GetInvoice(ctx, id)
}

// MarkOverdueInvoices moves ISSUED invoices past their due date to OVERDUE.
func MarkOverdueInvoices(ctx context.Context, now time.Time) (int64, error) {
	res := config.GetDB().WithContext(ctx).Model(&Invoice{}).
		Where("status = ? AND due_at < ?", InvoiceStatusIssued, now).
		Update("status", InvoiceStatusOverdue)
	return res.RowsAffected, res.Error
}

// InvoiceVerificationToken signs the data printed in the invoice QR code.
func InvoiceVerificationToken(invoice *Invoice) (string, error) {
	return utils.InvoiceTokenGenerate(invoice.ID, invoice.Number, invoice.Total.StringFixed(2), invoice.IssuedAt)
}

// VerifyInvoiceToken checks a QR token against the stored invoice.
func VerifyInvoiceToken(ctx context.Context, token string) (*Invoice, error) {
	claim, err := utils.InvoiceTokenValidate(token)
	if err != nil {
		return nil, err
	}
	var invoice Invoice
	err = config.GetDB().WithContext(ctx).Preload("Customer").First(&invoice, claim.InvoiceId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	if invoice.Number != claim.Number || invoice.Total.StringFixed(2) != claim.Total {
		return nil, utils.NewValidationError("invoice token does not match")
	}
	return &invoice, nil
}
