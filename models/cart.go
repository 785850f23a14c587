package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// carts stay open for a week after creation
const cartLifetime = 7 * 24 * time.Hour

// cart mutations retry conflicts on the one-active-cart index
const cartMutationAttempts = 3

var (
	ErrCartNotFound         = utils.NewNotFoundError("cart not found")
	ErrCartItemNotFound     = utils.NewNotFoundError("product is not in the cart")
	ErrOutOfStock           = utils.NewValidationError("product is out of stock")
	ErrCartExpired          = utils.NewValidationError("cart has expired")
	ErrEmptyCart            = utils.NewValidationError("cart is empty")
	ErrCartNotActive        = utils.NewValidationError("cart is not active")
	ErrCartAlreadyConverted = utils.NewConflictError("cart already converted", false)
)

type Cart struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CustomerId  int             `gorm:"not null;index" json:"customer_id"`
	Customer    *Customer       `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	Status      CartStatus      `gorm:"size:20;not null;index" json:"status"`
	SessionCode string          `gorm:"size:64;index" json:"session_code"`
	ExpiresAt   time.Time       `gorm:"not null;index" json:"expires_at"`
	TotalItems  int             `gorm:"not null;default:0" json:"total_items"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	SaleId      *int            `gorm:"index" json:"sale_id"`
	Notes       string          `gorm:"type:text" json:"notes"`
	// set to CustomerId while ACTIVE; the unique index allows one active cart per customer
	ActiveCustomerId *int       `gorm:"uniqueIndex" json:"-"`
	Items            []CartItem `gorm:"foreignKey:CartId" json:"items"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type CartItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	CartId    int             `gorm:"not null;uniqueIndex:uniq_cart_product" json:"cart_id"`
	ProductId int             `gorm:"not null;uniqueIndex:uniq_cart_product;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type CartSummary struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

// CartDetail is a cart with its items and computed totals.
type CartDetail struct {
	*Cart
	Totals CartSummary `json:"totals"`
}

func (c Cart) IsExpiredAt(at time.Time) bool {
	return at.After(c.ExpiresAt)
}

// CartTotals sums the lines and applies taxRate (percent) to the subtotal.
func CartTotals(cart *Cart, taxRate decimal.Decimal) CartSummary {
	summary := CartSummary{Subtotal: decimal.Zero, TaxRate: taxRate}
	for _, item := range cart.Items {
		summary.Subtotal = summary.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		summary.ItemCount += item.Quantity
	}
	summary.Tax = utils.CalculateTaxAmount(summary.Subtotal, taxRate)
	summary.Total = summary.Subtotal.Add(summary.Tax)
	return summary
}

func newCartDetail(cart *Cart, taxRate decimal.Decimal) *CartDetail {
	if cart.Items == nil {
		cart.Items = make([]CartItem, 0)
	}
	return &CartDetail{Cart: cart, Totals: CartTotals(cart, taxRate)}
}

// lockActiveCart returns the customer's ACTIVE cart locked for update. With
// create set, an expired cart is closed and a fresh one opened.
func lockActiveCart(tx *gorm.DB, customerId int, create bool) (*Cart, error) {
	var cart Cart
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND status = ?", customerId, CartStatusActive).
		Order("id DESC").
		First(&cart).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	now := timeNow()
	if err == nil {
		if !create || !cart.IsExpiredAt(now) {
			return &cart, nil
		}
		if err := closeCart(tx, cart.ID, CartStatusExpired); err != nil {
			return nil, err
		}
	} else if !create {
		return nil, ErrCartNotFound
	}

	cart = Cart{
		CustomerId:       customerId,
		Status:           CartStatusActive,
		SessionCode:      uuid.NewString(),
		ExpiresAt:        now.Add(cartLifetime),
		Subtotal:         decimal.Zero,
		ActiveCustomerId: &customerId,
	}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return &cart, nil
}

func closeCart(tx *gorm.DB, cartId int, status CartStatus) error {
	return tx.Model(&Cart{}).Where("id = ?", cartId).Updates(map[string]interface{}{
		"status":             status,
		"active_customer_id": nil,
	}).Error
}

// recalculateCart refreshes the cached line count and subtotal from the lines.
func recalculateCart(tx *gorm.DB, cartId int) error {
	var items []CartItem
	if err := tx.Where("cart_id = ?", cartId).Find(&items).Error; err != nil {
		return err
	}
	summary := CartTotals(&Cart{Items: items}, decimal.Zero)
	return tx.Model(&Cart{}).Where("id = ?", cartId).Updates(map[string]interface{}{
		"total_items": summary.ItemCount,
		"subtotal":    summary.Subtotal,
	}).Error
}

func loadCartProduct(tx *gorm.DB, productId int) (*Product, error) {
	var product Product
	err := tx.First(&product, productId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewValidationError("product not found")
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive || product.Stock <= 0 {
		return nil, utils.WrapError(utils.ErrorKindValidation, ErrOutOfStock, "%s is out of stock", product.Name)
	}
	return &product, nil
}

func saveCartItem(tx *gorm.DB, item *CartItem, quantity int) error {
	item.Quantity = quantity
	item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	if item.ID == 0 {
		return utils.ClassifyDBError(tx.Create(item).Error)
	}
	return tx.Model(&CartItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"quantity": item.Quantity,
		"subtotal": item.Subtotal,
	}).Error
}

func validateCartCustomer(ctx context.Context, customerId int) error {
	if err := utils.ValidateActiveResourceId[Customer](ctx, customerId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return ErrCustomerNotFound
		}
		return err
	}
	return nil
}

// AddCartItem adds quantity units of a product to the customer's cart,
// opening a cart on first use. The line total is capped at the product stock.
func AddCartItem(ctx context.Context, customerId int, productId int, quantity int) (*CartDetail, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := validateCartCustomer(ctx, customerId); err != nil {
		return nil, err
	}

	var cartId int
	db := config.GetDB()
	err := utils.WithRetry(ctx, cartMutationAttempts, func(attempt int) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cart, err := lockActiveCart(tx, customerId, true)
			if err != nil {
				return err
			}
			cartId = cart.ID
			product, err := loadCartProduct(tx, productId)
			if err != nil {
				return err
			}

			var item CartItem
			err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, productId).First(&item).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				item = CartItem{CartId: cart.ID, ProductId: productId, UnitPrice: product.SalePrice}
			} else if err != nil {
				return err
			}

			requested := item.Quantity + quantity
			if requested > product.Stock {
				requested = product.Stock
			}
			if err := saveCartItem(tx, &item, requested); err != nil {
				return err
			}
			return recalculateCart(tx, cart.ID)
		})
	})
	if err != nil {
		return nil, err
	}
	return GetCart(ctx, cartId)
}

// UpdateCartItemQuantity sets a line quantity; zero or less removes the line.
func UpdateCartItemQuantity(ctx context.Context, customerId int, productId int, quantity int) (*CartDetail, error) {
	if quantity <= 0 {
		return RemoveCartItem(ctx, customerId, productId)
	}

	var cartId int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := lockActiveCart(tx, customerId, false)
		if err != nil {
			return err
		}
		cartId = cart.ID

		var item CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, productId).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartItemNotFound
		}
		if err != nil {
			return err
		}
		product, err := loadCartProduct(tx, productId)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			quantity = product.Stock
		}
		if err := saveCartItem(tx, &item, quantity); err != nil {
			return err
		}
		return recalculateCart(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return GetCart(ctx, cartId)
}

func RemoveCartItem(ctx context.Context, customerId int, productId int) (*CartDetail, error) {
	var cartId int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := lockActiveCart(tx, customerId, false)
		if err != nil {
			return err
		}
		cartId = cart.ID
		res := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productId).Delete(&CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCartItemNotFound
		}
		return recalculateCart(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return GetCart(ctx, cartId)
}

// GetActiveCart returns the customer's open cart, or an empty one when the
// customer has not added anything yet.
func GetActiveCart(ctx context.Context, customerId int) (*CartDetail, error) {
	db := config.GetDB().WithContext(ctx)
	var cart Cart
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).Preload("Items.Product").
		Where("customer_id = ? AND status = ?", customerId, CartStatusActive).
		Order("id DESC").First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = Cart{CustomerId: customerId, Status: CartStatusActive, Subtotal: decimal.Zero}
	} else if err != nil {
		return nil, err
	}
	rate, err := activeTaxRate(db)
	if err != nil {
		return nil, err
	}
	return newCartDetail(&cart, rate), nil
}

func GetCart(ctx context.Context, id int) (*CartDetail, error) {
	db := config.GetDB().WithContext(ctx)
	var cart Cart
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).Preload("Items.Product").
		Preload("Customer").First(&cart, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	rate, err := activeTaxRate(db)
	if err != nil {
		return nil, err
	}
	return newCartDetail(&cart, rate), nil
}

type CartFilter struct {
	Status     CartStatus `form:"status"`
	CustomerId int        `form:"customer_id"`
	Pagination
}

func ListCarts(ctx context.Context, filter CartFilter) (*PaginatedList[Cart], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Cart{})
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.CustomerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.CustomerId)
	}
	return paginate[Cart](dbCtx.Order("updated_at DESC, id DESC"), filter.Pagination, "Customer")
}

// ListAbandonedCarts lists carts the sweeper marked ABANDONED that still hold items.
func ListAbandonedCarts(ctx context.Context, p Pagination) (*PaginatedList[Cart], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Cart{}).
		Where("status = ? AND total_items > ?", CartStatusAbandoned, 0)
	return paginate[Cart](dbCtx.Order("updated_at DESC"), p, "Customer", "Items")
}

type CartStatusInput struct {
	Status CartStatus `json:"status" binding:"required"`
}

// UpdateCartStatus is the manual override used by staff. CONVERTED is set
// only by checkout and never left.
func UpdateCartStatus(ctx context.Context, id int, input *CartStatusInput) (*CartDetail, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Status == CartStatusConverted {
		return nil, utils.NewValidationError("carts are converted by checkout only")
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cart, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		if err != nil {
			return err
		}
		if cart.Status == CartStatusConverted {
			return ErrCartAlreadyConverted
		}
		if cart.Status == input.Status {
			return nil
		}

		updates := map[string]interface{}{"status": input.Status, "active_customer_id": nil}
		if input.Status == CartStatusActive {
			var open int64
			if err := tx.Model(&Cart{}).Where("customer_id = ? AND status = ?", cart.CustomerId, CartStatusActive).
				Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return utils.NewConflictError("customer already has an active cart", false)
			}
			updates["active_customer_id"] = cart.CustomerId
			if cart.IsExpiredAt(timeNow()) {
				updates["expires_at"] = timeNow().Add(cartLifetime)
			}
		}
		if err := tx.Model(&Cart{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "carts", id,
			fmt.Sprintf("cart %d %s -> %s", id, cart.Status, input.Status))
	})
	if err != nil {
		return nil, err
	}
	return GetCart(ctx, id)
}

type CartSweepResult struct {
	Expired   int64 `json:"expired"`
	Abandoned int64 `json:"abandoned"`
}

// SweepCarts closes ACTIVE carts past their expiry and marks carts idle for
// longer than abandonAfter as ABANDONED.
func SweepCarts(ctx context.Context, now time.Time, abandonAfter time.Duration) (*CartSweepResult, error) {
	result := &CartSweepResult{}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Cart{}).
			Where("status = ? AND expires_at < ?", CartStatusActive, now).
			Updates(map[string]interface{}{"status": CartStatusExpired, "active_customer_id": nil})
		if res.Error != nil {
			return res.Error
		}
		result.Expired = res.RowsAffected

		res = tx.Model(&Cart{}).
			Where("status = ? AND updated_at < ?", CartStatusActive, now.Add(-abandonAfter)).
			Updates(map[string]interface{}{"status": CartStatusAbandoned, "active_customer_id": nil})
		if res.Error != nil {
			return res.Error
		}
		result.Abandoned = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
