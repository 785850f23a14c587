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

var (
	ErrSaleNotFound    = utils.NewNotFoundError("sale not found")
	ErrSaleAlreadyVoid = utils.NewConflictError("sale is already void", false)
)

type Sale struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Number        string          `gorm:"size:50;not null;uniqueIndex" json:"number"`
	CustomerId    int             `gorm:"not null;index" json:"customer_id"`
	Customer      *Customer       `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	SellerId      *int            `gorm:"index" json:"seller_id"`
	Seller        *User           `gorm:"foreignKey:SellerId" json:"seller,omitempty"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Tax           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	Status        SaleStatus      `gorm:"size:20;not null;index" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	SoldAt        time.Time       `gorm:"not null;index" json:"sold_at"`
	VoidedAt      *time.Time      `json:"voided_at"`
	VoidReason    string          `gorm:"size:255" json:"void_reason"`
	Details       []SaleDetail    `gorm:"foreignKey:SaleId" json:"details,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleDetail struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"not null;index" json:"sale_id"`
	ProductId int             `gorm:"not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	sale, err := utils.FetchModel[Sale](ctx, id, "Customer", "Details", "Details.Product")
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrSaleNotFound
	}
	return sale, err
}

type SaleFilter struct {
	CustomerId int        `form:"customer_id"`
	SellerId   int        `form:"seller_id"`
	Status     SaleStatus `form:"status"`
	Number     string     `form:"number"`
	From       string     `form:"fecha_inicio"`
	To         string     `form:"fecha_fin"`
	Pagination
}

func ListSales(ctx context.Context, filter SaleFilter) (*PaginatedList[Sale], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Sale{})
	if filter.CustomerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.CustomerId)
	}
	if filter.SellerId > 0 {
		dbCtx = dbCtx.Where("seller_id = ?", filter.SellerId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Number != "" {
		dbCtx = dbCtx.Where("number LIKE ?", "%"+filter.Number+"%")
	}
	dbCtx, err := ApplyDateRange(ctx, dbCtx, "sold_at", filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	return paginate[Sale](dbCtx.Order("sold_at DESC, id DESC"), filter.Pagination, "Customer")
}

// ApplyDateRange filters column by local calendar dates in the configured timezone.
func ApplyDateRange(ctx context.Context, dbCtx *gorm.DB, column string, from string, to string) (*gorm.DB, error) {
	if from == "" && to == "" {
		return dbCtx, nil
	}
	cfg, err := GetActiveConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := utils.ParseDateRange(from, to, cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if start != nil {
		dbCtx = dbCtx.Where(column+" >= ?", start.UTC())
	}
	if end != nil {
		dbCtx = dbCtx.Where(column+" < ?", end.UTC())
	}
	return dbCtx, nil
}

type VoidSaleInput struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

type SaleVoidedPayload struct {
	SaleId     int    `json:"sale_id"`
	Number     string `json:"number"`
	CustomerId int    `json:"customer_id"`
	Reason     string `json:"reason"`
}

// VoidSale reverses a sale: stock comes back, the invoice is voided and its
// warranties are rejected.
func VoidSale(ctx context.Context, id int, input *VoidSaleInput) (*Sale, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var productIds []int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale Sale
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Details").First(&sale, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSaleNotFound
		}
		if err != nil {
			return err
		}
		if sale.Status == SaleStatusVoid {
			return ErrSaleAlreadyVoid
		}

		for _, detail := range sale.Details {
			if err := IncrementStock(tx, detail.ProductId, detail.Quantity, StockReferenceTypeSaleVoid, sale.ID); err != nil {
				return err
			}
			productIds = append(productIds, detail.ProductId)
		}

		now := timeNow()
		if err := tx.Model(&Sale{}).Where("id = ?", sale.ID).Updates(map[string]interface{}{
			"status":      SaleStatusVoid,
			"voided_at":   &now,
			"void_reason": trimmed(input.Reason),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Invoice{}).Where("sale_id = ? AND status <> ?", sale.ID, InvoiceStatusVoid).
			Update("status", InvoiceStatusVoid).Error; err != nil {
			return err
		}
		if err := tx.Model(&Warranty{}).Where("sale_id = ?", sale.ID).
			Update("status", WarrantyStatusRejected).Error; err != nil {
			return err
		}
		if err := createActivityLog(tx, ActivityTypeDelete, "sales", sale.ID,
			fmt.Sprintf("voided sale %s: %s", sale.Number, trimmed(input.Reason))); err != nil {
			return err
		}
		return enqueueEvent(tx, EventSaleVoided, "sales", sale.ID, SaleVoidedPayload{
			SaleId:     sale.ID,
			Number:     sale.Number,
			CustomerId: sale.CustomerId,
			Reason:     trimmed(input.Reason),
		})
	})
	if err != nil {
		return nil, err
	}
	for _, productId := range utils.UniqueSlice(productIds) {
		clearProductCache(productId)
	}
	return GetSale(ctx, id)
}
