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

var ErrPurchaseNotFound = utils.NewNotFoundError("purchase not found")

type Purchase struct {
	ID                    int              `gorm:"primary_key" json:"id"`
	Number                string           `gorm:"size:50;not null;uniqueIndex" json:"number"`
	SupplierId            int              `gorm:"not null;index" json:"supplier_id"`
	Supplier              *Supplier        `gorm:"foreignKey:SupplierId" json:"supplier,omitempty"`
	RequestedById         *int             `gorm:"index" json:"requested_by_id"`
	RequestedBy           *Technician      `gorm:"foreignKey:RequestedById" json:"requested_by,omitempty"`
	Status                PurchaseStatus   `gorm:"size:20;not null;index" json:"status"`
	Subtotal              decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	Discount              decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Tax                   decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"tax"`
	ShippingCost          decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"shipping_cost"`
	Total                 decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"total"`
	PaymentMethod         PaymentMethod    `gorm:"size:20" json:"payment_method"`
	SupplierInvoiceNumber string           `gorm:"size:50" json:"supplier_invoice_number"`
	Notes                 string           `gorm:"type:text" json:"notes"`
	RequestedAt           time.Time        `gorm:"not null;index" json:"requested_at"`
	ReceivedAt            *time.Time       `json:"received_at"`
	Details               []PurchaseDetail `gorm:"foreignKey:PurchaseId" json:"details,omitempty"`
	CreatedAt             time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseDetail struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PurchaseId int             `gorm:"not null;index" json:"purchase_id"`
	ProductId  int             `gorm:"not null;index" json:"product_id"`
	Product    *Product        `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
}

type NewPurchaseDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type NewPurchase struct {
	SupplierId            int                  `json:"supplier_id" binding:"required"`
	RequestedById         *int                 `json:"requested_by_id"`
	PaymentMethod         PaymentMethod        `json:"payment_method"`
	Discount              decimal.Decimal      `json:"discount"`
	ShippingCost          decimal.Decimal      `json:"shipping_cost"`
	SupplierInvoiceNumber string               `json:"supplier_invoice_number" binding:"max=50"`
	Notes                 string               `json:"notes"`
	Details               []*NewPurchaseDetail `json:"details" binding:"required,min=1,dive"`
}

func (input *NewPurchase) validate(ctx context.Context) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.PaymentMethod != "" && !input.PaymentMethod.IsValid() {
		return utils.NewValidationError("invalid payment method")
	}
	if input.Discount.IsNegative() || input.ShippingCost.IsNegative() {
		return utils.NewValidationError("discount and shipping cannot be negative")
	}
	if err := utils.ValidateActiveResourceId[Supplier](ctx, input.SupplierId); err != nil {
		return utils.NewValidationError("supplier not found")
	}
	if input.RequestedById != nil {
		if err := utils.ValidateResourceId[Technician](ctx, *input.RequestedById); err != nil {
			return utils.NewValidationError("technician not found")
		}
	}
	productIds := make([]int, 0, len(input.Details))
	for _, detail := range input.Details {
		if detail.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit price cannot be negative")
		}
		productIds = append(productIds, detail.ProductId)
	}
	if len(utils.UniqueSlice(productIds)) != len(productIds) {
		return utils.NewValidationError("duplicate product in details")
	}
	return utils.MassValidateResourceIds(ctx, []utils.ValidationRule[int]{
		{Model: &Product{}, Ids: productIds, Message: "product not found"},
	})
}

// buildPurchase prices the lines and totals: subtotal - discount + tax + shipping.
func (input *NewPurchase) buildPurchase(taxRate decimal.Decimal) (*Purchase, error) {
	purchase := Purchase{
		SupplierId:            input.SupplierId,
		RequestedById:         input.RequestedById,
		PaymentMethod:         input.PaymentMethod,
		Discount:              input.Discount,
		ShippingCost:          input.ShippingCost,
		SupplierInvoiceNumber: trimmed(input.SupplierInvoiceNumber),
		Notes:                 input.Notes,
		Subtotal:              decimal.Zero,
	}
	for _, detail := range input.Details {
		lineTotal := detail.UnitPrice.Mul(decimal.NewFromInt(int64(detail.Quantity)))
		purchase.Details = append(purchase.Details, PurchaseDetail{
			ProductId: detail.ProductId,
			Quantity:  detail.Quantity,
			UnitPrice: detail.UnitPrice,
			Subtotal:  lineTotal,
		})
		purchase.Subtotal = purchase.Subtotal.Add(lineTotal)
	}
	if purchase.Discount.GreaterThan(purchase.Subtotal) {
		return nil, utils.NewValidationError("discount cannot exceed the subtotal")
	}
	taxable := purchase.Subtotal.Sub(purchase.Discount)
	purchase.Tax = utils.CalculateTaxAmount(taxable, taxRate)
	purchase.Total = taxable.Add(purchase.Tax).Add(purchase.ShippingCost)
	return &purchase, nil
}

func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	var purchaseId int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taxRate, err := activeTaxRate(tx)
		if err != nil {
			return err
		}
		purchase, err := input.buildPurchase(taxRate)
		if err != nil {
			return err
		}
		now := timeNow()
		number, err := NextDocumentNumber(tx, DocumentKindPurchase, now)
		if err != nil {
			return err
		}
		purchase.Number = number
		purchase.Status = PurchaseStatusRequested
		purchase.RequestedAt = now
		if err := tx.Create(purchase).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		purchaseId = purchase.ID
		return createActivityLog(tx, ActivityTypeCreate, "purchases", purchase.ID, "requested purchase "+purchase.Number)
	})
	if err != nil {
		return nil, err
	}
	return GetPurchase(ctx, purchaseId)
}

func lockPurchase(tx *gorm.DB, id int) (*Purchase, error) {
	var purchase Purchase
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&purchase, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// UpdatePurchase replaces the lines of a purchase that has not been approved yet.
func UpdatePurchase(ctx context.Context, id int, input *NewPurchase) (*Purchase, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockPurchase(tx, id)
		if err != nil {
			return err
		}
		if existing.Status != PurchaseStatusRequested && existing.Status != PurchaseStatusQuoted {
			return utils.NewValidationError("only requested or quoted purchases can be edited")
		}
		taxRate, err := activeTaxRate(tx)
		if err != nil {
			return err
		}
		purchase, err := input.buildPurchase(taxRate)
		if err != nil {
			return err
		}
		if err := tx.Where("purchase_id = ?", id).Delete(&PurchaseDetail{}).Error; err != nil {
			return err
		}
		for i := range purchase.Details {
			purchase.Details[i].PurchaseId = id
		}
		if err := tx.Create(&purchase.Details).Error; err != nil {
			return err
		}
		if err := tx.Model(&Purchase{}).Where("id = ?", id).Updates(map[string]interface{}{
			"supplier_id":             purchase.SupplierId,
			"requested_by_id":         purchase.RequestedById,
			"payment_method":          purchase.PaymentMethod,
			"subtotal":                purchase.Subtotal,
			"discount":                purchase.Discount,
			"tax":                     purchase.Tax,
			"shipping_cost":           purchase.ShippingCost,
			"total":                   purchase.Total,
			"supplier_invoice_number": purchase.SupplierInvoiceNumber,
			"notes":                   purchase.Notes,
		}).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeUpdate, "purchases", id, "updated purchase "+existing.Number)
	})
	if err != nil {
		return nil, err
	}
	return GetPurchase(ctx, id)
}

type PurchaseStatusInput struct {
	Status PurchaseStatus `json:"status" binding:"required"`
}

func UpdatePurchaseStatus(ctx context.Context, id int, input *PurchaseStatusInput) (*Purchase, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := lockPurchase(tx, id)
		if err != nil {
			return err
		}
		if !purchaseTransitions.allows(purchase.Status, input.Status) {
			return utils.NewValidationError(fmt.Sprintf("purchase cannot move from %s to %s", purchase.Status, input.Status))
		}
		if err := tx.Model(&Purchase{}).Where("id = ?", id).Update("status", input.Status).Error; err != nil {
			return err
		}
		activityType := ActivityTypeUpdate
		switch input.Status {
		case PurchaseStatusApproved:
			activityType = ActivityTypeApprove
		case PurchaseStatusCancelled:
			activityType = ActivityTypeReject
		}
		return createActivityLog(tx, activityType, "purchases", id,
			fmt.Sprintf("purchase %s %s -> %s", purchase.Number, purchase.Status, input.Status))
	})
	if err != nil {
		return nil, err
	}
	return GetPurchase(ctx, id)
}

type PurchaseReceivedPayload struct {
	PurchaseId int    `json:"purchase_id"`
	Number     string `json:"number"`
	SupplierId int    `json:"supplier_id"`
	ProductIds []int  `json:"product_ids"`
}

// ReceivePurchase books the ordered quantities into stock.
func ReceivePurchase(ctx context.Context, id int) (*Purchase, error) {
	release := utils.ObtainLock(ctx, fmt.Sprintf("lock:purchase-receive:%d", id), 30*time.Second, "purchase.go", "ReceivePurchase")
	defer release()

	var productIds []int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := lockPurchase(tx, id)
		if err != nil {
			return err
		}
		switch purchase.Status {
		case PurchaseStatusApproved, PurchaseStatusOrdered, PurchaseStatusPartiallyReceived:
		case PurchaseStatusReceived, PurchaseStatusInvoiced, PurchaseStatusPaid:
			return utils.NewConflictError("purchase was already received", false)
		default:
			return utils.NewValidationError("purchase must be approved before it is received")
		}

		var details []PurchaseDetail
		if err := tx.Where("purchase_id = ?", id).Order("id").Find(&details).Error; err != nil {
			return err
		}
		for _, detail := range details {
			if err := IncrementStock(tx, detail.ProductId, detail.Quantity, StockReferenceTypePurchase, id); err != nil {
				return err
			}
			productIds = append(productIds, detail.ProductId)
		}

		now := timeNow()
		if err := tx.Model(&Purchase{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      PurchaseStatusReceived,
			"received_at": &now,
		}).Error; err != nil {
			return err
		}
		if err := createActivityLog(tx, ActivityTypeUpdate, "purchases", id, "received purchase "+purchase.Number); err != nil {
			return err
		}
		return enqueueEvent(tx, EventPurchaseReceived, "purchases", id, PurchaseReceivedPayload{
			PurchaseId: id,
			Number:     purchase.Number,
			SupplierId: purchase.SupplierId,
			ProductIds: productIds,
		})
	})
	if err != nil {
		return nil, err
	}
	for _, productId := range utils.UniqueSlice(productIds) {
		clearProductCache(productId)
	}
	return GetPurchase(ctx, id)
}

func DeletePurchase(ctx context.Context, id int) (*Purchase, error) {
	var purchase *Purchase
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		purchase, err = lockPurchase(tx, id)
		if err != nil {
			return err
		}
		if purchase.Status != PurchaseStatusRequested && purchase.Status != PurchaseStatusCancelled {
			return utils.NewValidationError("only requested or cancelled purchases can be deleted")
		}
		if err := tx.Where("purchase_id = ?", id).Delete(&PurchaseDetail{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(purchase).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "purchases", id, "deleted purchase "+purchase.Number)
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	purchase, err := utils.FetchModel[Purchase](ctx, id, "Supplier", "RequestedBy", "Details", "Details.Product")
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrPurchaseNotFound
	}
	return purchase, err
}

type PurchaseFilter struct {
	SupplierId int            `form:"supplier_id"`
	Status     PurchaseStatus `form:"status"`
	Number     string         `form:"number"`
	From       string         `form:"fecha_inicio"`
	To         string         `form:"fecha_fin"`
	Pagination
}

func ListPurchases(ctx context.Context, filter PurchaseFilter) (*PaginatedList[Purchase], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Purchase{})
	if filter.SupplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", filter.SupplierId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Number != "" {
		dbCtx = dbCtx.Where("number LIKE ?", "%"+filter.Number+"%")
	}
	dbCtx, err := ApplyDateRange(ctx, dbCtx, "requested_at", filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	return paginate[Purchase](dbCtx.Order("requested_at DESC, id DESC"), filter.Pagination, "Supplier")
}
