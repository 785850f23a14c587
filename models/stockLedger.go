package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

var (
	ErrInsufficientStock = &utils.AppError{Kind: utils.ErrorKindValidation, Message: "insufficient stock"}
	ErrInvalidQuantity   = utils.NewValidationError("quantity must be greater than zero")
)

// StockMovement is an append-only record of every stock change.
type StockMovement struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ProductId     int                `gorm:"not null;index:idx_stock_movement_product,priority:1" json:"product_id"`
	Quantity      int                `gorm:"not null" json:"quantity"`
	BalanceAfter  int                `gorm:"not null" json:"balance_after"`
	ReferenceType StockReferenceType `gorm:"size:20;not null;index:idx_stock_movement_reference,priority:1" json:"reference_type"`
	ReferenceId   int                `gorm:"not null;index:idx_stock_movement_reference,priority:2" json:"reference_id"`
	CreatedAt     time.Time          `gorm:"autoCreateTime;index:idx_stock_movement_product,priority:2" json:"created_at"`
}

func insufficientStockError(name string) error {
	return utils.WrapError(utils.ErrorKindValidation, ErrInsufficientStock, "insufficient stock for %s", name)
}

// HasAvailableStock reads the current stock inside tx. It does not reserve;
// DecrementStock is the authoritative check.
func HasAvailableStock(tx *gorm.DB, productId int, quantity int) (bool, error) {
	var stock int
	err := tx.Model(&Product{}).Select("stock").Where("id = ?", productId).Scan(&stock).Error
	if err != nil {
		return false, err
	}
	return quantity <= stock, nil
}

// DecrementStock removes qty units in one conditional UPDATE, so concurrent
// callers can never drive stock below zero.
func DecrementStock(tx *gorm.DB, productId int, qty int, refType StockReferenceType, refId int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res := tx.Model(&Product{}).
		Where("id = ? AND stock >= ?", productId, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return utils.ClassifyDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		var product Product
		if err := tx.Select("id", "name").First(&product, productId).Error; err != nil {
			return err
		}
		return insufficientStockError(product.Name)
	}
	balance, err := currentStock(tx, productId)
	if err != nil {
		return err
	}
	return recordStockMovement(tx, productId, -qty, balance, refType, refId)
}

// IncrementStock adds qty units, used by purchase receipts and voided sales.
func IncrementStock(tx *gorm.DB, productId int, qty int, refType StockReferenceType, refId int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res := tx.Model(&Product{}).
		Where("id = ?", productId).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return utils.ClassifyDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	balance, err := currentStock(tx, productId)
	if err != nil {
		return err
	}
	return recordStockMovement(tx, productId, qty, balance, refType, refId)
}

func currentStock(tx *gorm.DB, productId int) (int, error) {
	var stock int
	err := tx.Model(&Product{}).Select("stock").Where("id = ?", productId).Scan(&stock).Error
	return stock, err
}

func recordStockMovement(tx *gorm.DB, productId int, delta int, balance int, refType StockReferenceType, refId int) error {
	movement := StockMovement{
		ProductId:     productId,
		Quantity:      delta,
		BalanceAfter:  balance,
		ReferenceType: refType,
		ReferenceId:   refId,
	}
	return tx.Create(&movement).Error
}

type NewStockAdjustment struct {
	Quantity int    `json:"quantity" binding:"required,ne=0"`
	Reason   string `json:"reason" binding:"required,max=255"`
}

// AdjustStock applies a manual correction. A negative quantity is bounded by
// the current stock like any other decrement.
func AdjustStock(ctx context.Context, productId int, input *NewStockAdjustment) (*Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Product](ctx, productId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if input.Quantity > 0 {
			err = IncrementStock(tx, productId, input.Quantity, StockReferenceTypeAdjustment, productId)
		} else {
			err = DecrementStock(tx, productId, -input.Quantity, StockReferenceTypeAdjustment, productId)
		}
		if err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeUpdate, "products", productId,
			fmt.Sprintf("stock adjusted by %d: %s", input.Quantity, trimmed(input.Reason)))
	})
	if err != nil {
		return nil, err
	}
	clearProductCache(productId)
	return utils.FetchModel[Product](ctx, productId, "Brand")
}

type StockMovementFilter struct {
	ReferenceType StockReferenceType `form:"reference_type"`
	Pagination
}

func ListStockMovements(ctx context.Context, productId int, filter StockMovementFilter) (*PaginatedList[StockMovement], error) {
	if err := utils.ValidateResourceId[Product](ctx, productId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("product not found")
		}
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&StockMovement{}).Where("product_id = ?", productId)
	if filter.ReferenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", filter.ReferenceType)
	}
	return paginate[StockMovement](dbCtx.Order("id DESC"), filter.Pagination)
}
