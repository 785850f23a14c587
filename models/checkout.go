package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const checkoutLockTTL = 30 * time.Second

type NewCheckout struct {
	CartId         int             `json:"cart_id"`
	CustomerId     int             `json:"customer_id"`
	PaymentMethod  PaymentMethod   `json:"payment_method" binding:"required"`
	SellerId       *int            `json:"seller_id"`
	Discount       decimal.Decimal `json:"discount"`
	Notes          string          `json:"notes"`
	IdempotencyKey string          `json:"idempotency_key" binding:"max=100"`
}

// CheckoutCompletedPayload is published with the checkout.completed event.
type CheckoutCompletedPayload struct {
	SaleId      int             `json:"sale_id"`
	Number      string          `json:"number"`
	CustomerId  int             `json:"customer_id"`
	Total       decimal.Decimal `json:"total"`
	InvoiceId   int             `json:"invoice_id"`
	WarrantyIds []int           `json:"warranty_ids"`
	ProductIds  []int           `json:"product_ids"`
}

type checkoutTotals struct {
	subtotal decimal.Decimal
	discount decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
}

// computeCheckoutTotals taxes the discounted subtotal at taxRate percent.
func computeCheckoutTotals(items []CartItem, discount decimal.Decimal, taxRate decimal.Decimal) (checkoutTotals, error) {
	summary := CartTotals(&Cart{Items: items}, taxRate)
	if discount.IsNegative() {
		return checkoutTotals{}, utils.NewValidationError("discount cannot be negative")
	}
	if discount.GreaterThan(summary.Subtotal) {
		return checkoutTotals{}, utils.NewValidationError("discount cannot exceed the subtotal")
	}
	taxable := summary.Subtotal.Sub(discount)
	tax := utils.CalculateTaxAmount(taxable, taxRate)
	return checkoutTotals{
		subtotal: summary.Subtotal,
		discount: discount,
		tax:      tax,
		total:    taxable.Add(tax),
	}, nil
}

func (input *NewCheckout) validate(ctx context.Context) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if !input.PaymentMethod.IsValid() {
		return utils.NewValidationError("invalid payment method")
	}
	if input.CartId <= 0 && input.CustomerId <= 0 {
		return utils.NewValidationError("cart_id or customer_id is required")
	}
	if input.SellerId != nil {
		if err := utils.ValidateActiveResourceId[User](ctx, *input.SellerId); err != nil {
			return utils.NewValidationError("seller not found")
		}
	}
	return nil
}

// resolveCheckoutCart finds the cart to check out: the given one, or the
// customer's ACTIVE cart. A customer without one falls back to their newest
// cart so a replay reports the conversion instead of an empty cart.
func resolveCheckoutCart(ctx context.Context, input *NewCheckout) (int, error) {
	if input.CartId > 0 {
		return input.CartId, nil
	}
	db := config.GetDB().WithContext(ctx)
	var cart Cart
	err := db.Where("customer_id = ? AND status = ?", input.CustomerId, CartStatusActive).
		Order("id DESC").First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("customer_id = ?", input.CustomerId).Order("id DESC").First(&cart).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrEmptyCart
	}
	if err != nil {
		return 0, err
	}
	return cart.ID, nil
}

func findCheckoutKey(db *gorm.DB, key string) (*CheckoutIdempotencyKey, error) {
	if key == "" {
		return nil, nil
	}
	var record CheckoutIdempotencyKey
	err := db.Where("idempotency_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// previousCheckout returns the sale recorded for key, or zero when the key is unused.
func previousCheckout(db *gorm.DB, key string, cartId int) (int, error) {
	record, err := findCheckoutKey(db, key)
	if err != nil || record == nil {
		return 0, err
	}
	if record.CartId != cartId {
		return 0, utils.NewConflictError("idempotency key was used for another cart", false)
	}
	return record.SaleId, nil
}

// replayedCheckout resolves a known key before any cart lookup; the customer
// path has no ACTIVE cart left once the first request converted it.
func replayedCheckout(db *gorm.DB, input *NewCheckout) (int, error) {
	record, err := findCheckoutKey(db, input.IdempotencyKey)
	if err != nil || record == nil {
		return 0, err
	}
	if input.CartId > 0 && record.CartId != input.CartId {
		return 0, utils.NewConflictError("idempotency key was used for another cart", false)
	}
	if input.CartId <= 0 {
		var cart Cart
		if err := db.Select("id", "customer_id").First(&cart, record.CartId).Error; err != nil {
			return 0, err
		}
		if cart.CustomerId != input.CustomerId {
			return 0, utils.NewConflictError("idempotency key was used for another cart", false)
		}
	}
	return record.SaleId, nil
}

// Checkout converts a cart into a paid sale with its invoice and warranties
// in one transaction. Nothing is written when any step fails.
func Checkout(ctx context.Context, input *NewCheckout) (*Sale, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	input.IdempotencyKey = trimmed(input.IdempotencyKey)

	ctx, span := tracer.Start(ctx, "models.Checkout")
	defer span.End()

	if saleId, err := replayedCheckout(config.GetDB().WithContext(ctx), input); err != nil {
		return nil, err
	} else if saleId > 0 {
		span.SetAttributes(attribute.Bool("checkout.replayed", true))
		return GetSale(ctx, saleId)
	}

	cartId, err := resolveCheckoutCart(ctx, input)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("cart.id", cartId))

	if config.CheckoutRedisLockEnabled() {
		release := utils.ObtainLock(ctx, fmt.Sprintf("lock:checkout:%d", cartId), checkoutLockTTL, "checkout.go", "Checkout")
		defer release()
	}

	var result *checkoutResult
	err = utils.WithRetry(ctx, config.CheckoutMaxAttempts(), func(attempt int) error {
		span.SetAttributes(attribute.Int("checkout.attempt", attempt))
		var err error
		result, err = checkoutCart(ctx, cartId, input)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, productId := range result.productIds {
		clearProductCache(productId)
	}
	return GetSale(ctx, result.saleId)
}

type checkoutResult struct {
	saleId     int
	productIds []int
}

func checkoutCart(ctx context.Context, cartId int, input *NewCheckout) (*checkoutResult, error) {
	result := &checkoutResult{}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cart, cartId).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		if err != nil {
			return err
		}
		if input.CustomerId > 0 && cart.CustomerId != input.CustomerId {
			return utils.NewPermissionError("cart belongs to another customer")
		}

		now := timeNow()
		switch {
		case cart.Status == CartStatusConverted:
			// a replayed request gets the sale it already produced
			saleId, err := previousCheckout(tx, input.IdempotencyKey, cart.ID)
			if err != nil {
				return err
			}
			if saleId > 0 {
				result.saleId = saleId
				return nil
			}
			return ErrCartAlreadyConverted
		case cart.Status != CartStatusActive:
			return ErrCartNotActive
		case cart.IsExpiredAt(now):
			return ErrCartExpired
		}

		var items []CartItem
		if err := tx.Preload("Product").Where("cart_id = ?", cart.ID).Order("id").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		// every line is checked before anything is written
		for _, item := range items {
			if item.Product == nil || !item.Product.IsActive {
				return utils.NewValidationError(fmt.Sprintf("product %d is no longer available", item.ProductId))
			}
			ok, err := HasAvailableStock(tx, item.ProductId, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientStockError(item.Product.Name)
			}
		}

		taxRate, err := activeTaxRate(tx)
		if err != nil {
			return err
		}
		totals, err := computeCheckoutTotals(items, input.Discount, taxRate)
		if err != nil {
			return err
		}

		number, err := NextDocumentNumber(tx, DocumentKindSale, now)
		if err != nil {
			return err
		}
		status := SaleStatusPaid
		if input.PaymentMethod == PaymentMethodCredit {
			status = SaleStatusCredit
		}
		sale := Sale{
			Number:        number,
			CustomerId:    cart.CustomerId,
			SellerId:      input.SellerId,
			Subtotal:      totals.subtotal,
			Discount:      totals.discount,
			Tax:           totals.tax,
			Total:         totals.total,
			PaymentMethod: input.PaymentMethod,
			Status:        status,
			Notes:         input.Notes,
			SoldAt:        now,
		}
		for _, item := range items {
			sale.Details = append(sale.Details, SaleDetail{
				ProductId: item.ProductId,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Subtotal:  item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			})
		}
		if err := tx.Create(&sale).Error; err != nil {
			return utils.ClassifyDBError(err)
		}

		for _, item := range items {
			if err := DecrementStock(tx, item.ProductId, item.Quantity, StockReferenceTypeSale, sale.ID); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					// stock moved after the check; the retry reports it
					return &utils.AppError{Kind: utils.ErrorKindConflict, Message: err.Error(), Retryable: true, Err: err}
				}
				return err
			}
			result.productIds = append(result.productIds, item.ProductId)
		}

		invoice := Invoice{
			CustomerId: cart.CustomerId,
			SaleId:     &sale.ID,
			Subtotal:   totals.subtotal,
			Discount:   totals.discount,
			Tax:        totals.tax,
			Total:      totals.total,
		}
		if err := issueInvoice(tx, &invoice, now); err != nil {
			return err
		}

		var warrantyIds []int
		for _, item := range items {
			if item.Product.WarrantyMonths <= 0 {
				continue
			}
			productId := item.ProductId
			warranty := Warranty{
				ProductId:  &productId,
				SaleId:     &sale.ID,
				CustomerId: cart.CustomerId,
			}
			if err := issueWarranty(tx, &warranty, item.Product.WarrantyMonths, now); err != nil {
				return err
			}
			warrantyIds = append(warrantyIds, warranty.ID)
		}

		res := tx.Model(&Cart{}).Where("id = ? AND status = ?", cart.ID, CartStatusActive).Updates(map[string]interface{}{
			"status":             CartStatusConverted,
			"sale_id":            sale.ID,
			"active_customer_id": nil,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCartAlreadyConverted
		}

		if input.IdempotencyKey != "" {
			record := CheckoutIdempotencyKey{Key: input.IdempotencyKey, CartId: cart.ID, SaleId: sale.ID}
			if err := tx.Create(&record).Error; err != nil {
				return utils.ClassifyDBError(err)
			}
		}

		if err := createActivityLog(tx, ActivityTypeCreate, "sales", sale.ID,
			fmt.Sprintf("sale %s from cart %d, total %s", sale.Number, cart.ID, sale.Total.StringFixed(2))); err != nil {
			return err
		}
		result.saleId = sale.ID
		return enqueueEvent(tx, EventCheckoutCompleted, "sales", sale.ID, CheckoutCompletedPayload{
			SaleId:      sale.ID,
			Number:      sale.Number,
			CustomerId:  sale.CustomerId,
			Total:       sale.Total,
			InvoiceId:   invoice.ID,
			WarrantyIds: warrantyIds,
			ProductIds:  result.productIds,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
