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
	ErrServiceOrderNotFound = utils.NewNotFoundError("service order not found")
	ErrServiceOrderClosed   = utils.NewValidationError("service order is closed")
)

type ServiceOrder struct {
	ID                  int                  `gorm:"primary_key" json:"id"`
	Number              string               `gorm:"size:50;not null;uniqueIndex" json:"number"`
	CustomerId          int                  `gorm:"not null;index" json:"customer_id"`
	Customer            *Customer            `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	EquipmentId         int                  `gorm:"not null;index" json:"equipment_id"`
	Equipment           *Equipment           `gorm:"foreignKey:EquipmentId" json:"equipment,omitempty"`
	TechnicianId        *int                 `gorm:"index" json:"technician_id"`
	Technician          *Technician          `gorm:"foreignKey:TechnicianId" json:"technician,omitempty"`
	Status              ServiceOrderStatus   `gorm:"size:20;not null;index" json:"status"`
	Priority            ServiceOrderPriority `gorm:"size:10;not null;default:'MEDIUM'" json:"priority"`
	ProblemDescription  string               `gorm:"type:text;not null" json:"problem_description"`
	Diagnosis           string               `gorm:"type:text" json:"diagnosis"`
	Solution            string               `gorm:"type:text" json:"solution"`
	ReceivedAt          time.Time            `gorm:"not null;index" json:"received_at"`
	EstimatedDeliveryAt *time.Time           `json:"estimated_delivery_at"`
	DeliveredAt         *time.Time           `json:"delivered_at"`
	LaborCost           decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"labor_cost"`
	PartsCost           decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"parts_cost"`
	Total               decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"total"`
	Notes               string               `gorm:"type:text" json:"notes"`
	CreatedAt           time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o ServiceOrder) isClosed() bool {
	return o.Status == ServiceOrderStatusInvoiced || o.Status == ServiceOrderStatusCancelled
}

type NewServiceOrder struct {
	CustomerId          int                  `json:"customer_id" binding:"required"`
	EquipmentId         int                  `json:"equipment_id" binding:"required"`
	TechnicianId        *int                 `json:"technician_id"`
	Priority            ServiceOrderPriority `json:"priority"`
	ProblemDescription  string               `json:"problem_description" binding:"required"`
	Diagnosis           string               `json:"diagnosis"`
	Solution            string               `json:"solution"`
	EstimatedDeliveryAt *time.Time           `json:"estimated_delivery_at"`
	LaborCost           decimal.Decimal      `json:"labor_cost"`
	PartsCost           decimal.Decimal      `json:"parts_cost"`
	Notes               string               `json:"notes"`
}

func (input *NewServiceOrder) validate(ctx context.Context) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Priority == "" {
		input.Priority = ServiceOrderPriorityMedium
	}
	if !input.Priority.IsValid() {
		return utils.NewValidationError("invalid priority")
	}
	if input.LaborCost.IsNegative() || input.PartsCost.IsNegative() {
		return utils.NewValidationError("costs cannot be negative")
	}
	if err := utils.ValidateActiveResourceId[Customer](ctx, input.CustomerId); err != nil {
		return utils.NewValidationError("customer not found")
	}
	count, err := utils.ResourceCountWhere[Equipment](ctx, "id = ? AND customer_id = ?", input.EquipmentId, input.CustomerId)
	if err != nil {
		return err
	}
	if count == 0 {
		return utils.NewValidationError("equipment does not belong to the customer")
	}
	if input.TechnicianId != nil {
		if err := utils.ValidateActiveResourceId[Technician](ctx, *input.TechnicianId); err != nil {
			return utils.NewValidationError("technician not found")
		}
	}
	return nil
}

func CreateServiceOrder(ctx context.Context, input *NewServiceOrder) (*ServiceOrder, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	if input.TechnicianId != nil {
		technician, err := GetTechnician(ctx, *input.TechnicianId)
		if err != nil {
			return nil, err
		}
		if !technician.IsAvailable() {
			return nil, utils.NewValidationError("technician is not available")
		}
	}
	now := timeNow()
	order := ServiceOrder{
		CustomerId:          input.CustomerId,
		EquipmentId:         input.EquipmentId,
		TechnicianId:        input.TechnicianId,
		Status:              ServiceOrderStatusPending,
		Priority:            input.Priority,
		ProblemDescription:  input.ProblemDescription,
		Diagnosis:           input.Diagnosis,
		Solution:            input.Solution,
		ReceivedAt:          now,
		EstimatedDeliveryAt: input.EstimatedDeliveryAt,
		LaborCost:           input.LaborCost,
		PartsCost:           input.PartsCost,
		Total:               input.LaborCost.Add(input.PartsCost),
		Notes:               input.Notes,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := NextDocumentNumber(tx, DocumentKindServiceOrder, now)
		if err != nil {
			return err
		}
		order.Number = number
		if err := tx.Create(&order).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "service_orders", order.ID, "opened service order "+order.Number)
	})
	if err != nil {
		return nil, err
	}
	return GetServiceOrder(ctx, order.ID)
}

// UpdateServiceOrder edits the work details of an open order.
func UpdateServiceOrder(ctx context.Context, id int, input *NewServiceOrder) (*ServiceOrder, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockServiceOrder(tx, id)
		if err != nil {
			return err
		}
		if order.isClosed() {
			return ErrServiceOrderClosed
		}
		if err := tx.Model(&ServiceOrder{}).Where("id = ?", id).Updates(map[string]interface{}{
			"customer_id":           input.CustomerId,
			"equipment_id":          input.EquipmentId,
			"technician_id":         input.TechnicianId,
			"priority":              input.Priority,
			"problem_description":   input.ProblemDescription,
			"diagnosis":             input.Diagnosis,
			"solution":              input.Solution,
			"estimated_delivery_at": input.EstimatedDeliveryAt,
			"labor_cost":            input.LaborCost,
			"parts_cost":            input.PartsCost,
			"total":                 input.LaborCost.Add(input.PartsCost),
			"notes":                 input.Notes,
		}).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeUpdate, "service_orders", id, "updated service order "+order.Number)
	})
	if err != nil {
		return nil, err
	}
	return GetServiceOrder(ctx, id)
}

func lockServiceOrder(tx *gorm.DB, id int) (*ServiceOrder, error) {
	var order ServiceOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrServiceOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type ServiceOrderStatusInput struct {
	Status ServiceOrderStatus `json:"status" binding:"required"`
	Notes  string             `json:"notes"`
}

type ServiceOrderEventPayload struct {
	ServiceOrderId int             `json:"service_order_id"`
	Number         string          `json:"number"`
	CustomerId     int             `json:"customer_id"`
	TechnicianId   *int            `json:"technician_id"`
	InvoiceId      int             `json:"invoice_id,omitempty"`
	Total          decimal.Decimal `json:"total"`
}

// UpdateServiceOrderStatus moves an order through its lifecycle. Completing
// an order stamps the delivery and credits the technician.
func UpdateServiceOrderStatus(ctx context.Context, id int, input *ServiceOrderStatusInput) (*ServiceOrder, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockServiceOrder(tx, id)
		if err != nil {
			return err
		}
		if !serviceOrderTransitions.allows(order.Status, input.Status) {
			return utils.NewValidationError(fmt.Sprintf("service order cannot move from %s to %s", order.Status, input.Status))
		}
		if input.Status == ServiceOrderStatusInProgress && order.TechnicianId == nil {
			return utils.NewValidationError("assign a technician before starting the order")
		}

		updates := map[string]interface{}{"status": input.Status}
		if notes := trimmed(input.Notes); notes != "" {
			updates["notes"] = notes
		}
		if input.Status == ServiceOrderStatusCompleted {
			now := timeNow()
			updates["delivered_at"] = &now
		}
		if err := tx.Model(&ServiceOrder{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if input.Status == ServiceOrderStatusCompleted {
			if order.TechnicianId != nil {
				if err := tx.Model(&Technician{}).Where("id = ?", *order.TechnicianId).
					UpdateColumn("services_completed", gorm.Expr("services_completed + ?", 1)).Error; err != nil {
					return err
				}
			}
			if err := enqueueEvent(tx, EventServiceOrderCompleted, "service_orders", id, ServiceOrderEventPayload{
				ServiceOrderId: id,
				Number:         order.Number,
				CustomerId:     order.CustomerId,
				TechnicianId:   order.TechnicianId,
				Total:          order.Total,
			}); err != nil {
				return err
			}
		}
		return createActivityLog(tx, ActivityTypeUpdate, "service_orders", id,
			fmt.Sprintf("service order %s %s -> %s", order.Number, order.Status, input.Status))
	})
	if err != nil {
		return nil, err
	}
	if order, err := utils.FetchModel[ServiceOrder](ctx, id); err == nil && order.TechnicianId != nil {
		_ = utils.RemoveRedisItem[Technician](*order.TechnicianId)
	}
	return GetServiceOrder(ctx, id)
}

// InvoiceServiceOrder bills a COMPLETED order at the configured tax rate.
func InvoiceServiceOrder(ctx context.Context, id int) (*Invoice, error) {
	var invoiceId int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockServiceOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status == ServiceOrderStatusInvoiced {
			return utils.NewConflictError("service order is already invoiced", false)
		}
		if order.Status != ServiceOrderStatusCompleted {
			return utils.NewValidationError("only completed service orders can be invoiced")
		}

		taxRate, err := activeTaxRate(tx)
		if err != nil {
			return err
		}
		tax := utils.CalculateTaxAmount(order.Total, taxRate)
		invoice := Invoice{
			CustomerId:     order.CustomerId,
			ServiceOrderId: &order.ID,
			Subtotal:       order.Total,
			Discount:       decimal.Zero,
			Tax:            tax,
			Total:          order.Total.Add(tax),
		}
		if err := issueInvoice(tx, &invoice, timeNow()); err != nil {
			return err
		}
		invoiceId = invoice.ID

		if err := tx.Model(&ServiceOrder{}).Where("id = ?", id).
			Update("status", ServiceOrderStatusInvoiced).Error; err != nil {
			return err
		}
		if err := createActivityLog(tx, ActivityTypeCreate, "invoices", invoice.ID,
			fmt.Sprintf("invoice %s for service order %s", invoice.Number, order.Number)); err != nil {
			return err
		}
		return enqueueEvent(tx, EventServiceOrderInvoiced, "service_orders", id, ServiceOrderEventPayload{
			ServiceOrderId: id,
			Number:         order.Number,
			CustomerId:     order.CustomerId,
			TechnicianId:   order.TechnicianId,
			InvoiceId:      invoice.ID,
			Total:          invoice.Total,
		})
	})
	if err != nil {
		return nil, err
	}
	return GetInvoice(ctx, invoiceId)
}

// DeleteServiceOrder removes orders that never started or were cancelled.
func DeleteServiceOrder(ctx context.Context, id int) (*ServiceOrder, error) {
	db := config.GetDB()
	var order *ServiceOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockServiceOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status != ServiceOrderStatusPending && order.Status != ServiceOrderStatusCancelled {
			return utils.NewValidationError("only pending or cancelled service orders can be deleted")
		}
		if err := tx.Delete(order).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "service_orders", id, "deleted service order "+order.Number)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func GetServiceOrder(ctx context.Context, id int) (*ServiceOrder, error) {
	order, err := utils.FetchModel[ServiceOrder](ctx, id, "Customer", "Equipment", "Technician")
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrServiceOrderNotFound
	}
	return order, err
}

type ServiceOrderFilter struct {
	Status       ServiceOrderStatus   `form:"status"`
	Priority     ServiceOrderPriority `form:"priority"`
	CustomerId   int                  `form:"customer_id"`
	TechnicianId int                  `form:"technician_id"`
	Number       string               `form:"number"`
	From         string               `form:"fecha_inicio"`
	To           string               `form:"fecha_fin"`
	Pagination
}

func ListServiceOrders(ctx context.Context, filter ServiceOrderFilter) (*PaginatedList[ServiceOrder], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&ServiceOrder{})
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		dbCtx = dbCtx.Where("priority = ?", filter.Priority)
	}
	if filter.CustomerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.CustomerId)
	}
	if filter.TechnicianId > 0 {
		dbCtx = dbCtx.Where("technician_id = ?", filter.TechnicianId)
	}
	if filter.Number != "" {
		dbCtx = dbCtx.Where("number LIKE ?", "%"+filter.Number+"%")
	}
	dbCtx, err := ApplyDateRange(ctx, dbCtx, "received_at", filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	return paginate[ServiceOrder](dbCtx.Order("received_at DESC, id DESC"), filter.Pagination, "Customer", "Equipment", "Technician")
}
