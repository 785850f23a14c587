package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = utils.NewNotFoundError("notification not found")

// Notification with a nil UserId is a broadcast to staff.
type Notification struct {
	ID               int              `gorm:"primary_key" json:"id"`
	UserId           *int             `gorm:"index" json:"user_id"`
	NotificationType NotificationType `gorm:"size:20;not null;index" json:"notification_type"`
	Title            string           `gorm:"size:200;not null" json:"title"`
	Message          string           `gorm:"type:text;not null" json:"message"`
	Link             string           `gorm:"size:255" json:"link"`
	IsRead           bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt        time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func createNotification(tx *gorm.DB, userId *int, notificationType NotificationType, title string, message string, link string) error {
	n := Notification{
		UserId:           userId,
		NotificationType: notificationType,
		Title:            title,
		Message:          message,
		Link:             link,
	}
	return tx.Create(&n).Error
}

// notificationScope returns what a user may see: their own rows, plus staff
// broadcasts for staff roles.
func notificationScope(dbCtx *gorm.DB, userId int, role UserRole) *gorm.DB {
	if role.IsStaff() {
		return dbCtx.Where("user_id = ? OR user_id IS NULL", userId)
	}
	return dbCtx.Where("user_id = ?", userId)
}

type NotificationFilter struct {
	OnlyUnread bool `form:"only_unread"`
	Pagination
}

func ListNotifications(ctx context.Context, filter NotificationFilter) (*PaginatedList[Notification], error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, utils.NewUnauthenticatedError("login required")
	}
	role, _ := utils.GetRoleFromContext(ctx)

	dbCtx := notificationScope(config.GetDB().WithContext(ctx).Model(&Notification{}), userId, UserRole(role))
	if filter.OnlyUnread {
		dbCtx = dbCtx.Where("is_read = ?", false)
	}
	return paginate[Notification](dbCtx.Order("id DESC"), filter.Pagination)
}

func MarkNotificationRead(ctx context.Context, id int) (*Notification, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, utils.NewUnauthenticatedError("login required")
	}
	role, _ := utils.GetRoleFromContext(ctx)

	db := config.GetDB()
	var n Notification
	err := notificationScope(db.WithContext(ctx).Model(&Notification{}), userId, UserRole(role)).
		Where("id = ?", id).Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return &n, nil
	}
	if err := db.WithContext(ctx).Model(&n).UpdateColumn("is_read", true).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	return &n, nil
}

// customerUserId resolves the login linked to a customer, if any.
func customerUserId(tx *gorm.DB, customerId int) (*int, error) {
	var customer Customer
	err := tx.Select("id", "user_id").Where("id = ?", customerId).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return customer.UserId, nil
}

func decodePayload[T any](msg config.EventMessage) (*T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	return &payload, nil
}

// NotifyCheckoutCompleted tells staff about the sale, warns about products
// left at or below their minimum stock, and tells the customer about new warranties.
func NotifyCheckoutCompleted(tx *gorm.DB, msg config.EventMessage) error {
	payload, err := decodePayload[CheckoutCompletedPayload](msg)
	if err != nil {
		return err
	}
	if err := createNotification(tx, nil, NotificationTypeSale,
		"Nueva venta "+payload.Number,
		fmt.Sprintf("Venta %s por %s", payload.Number, payload.Total.StringFixed(2)),
		fmt.Sprintf("/sales/%d", payload.SaleId)); err != nil {
		return err
	}

	if config.LowStockNotificationsEnabled() && len(payload.ProductIds) > 0 {
		if err := notifyLowStock(tx, payload.ProductIds); err != nil {
			return err
		}
	}

	if len(payload.WarrantyIds) > 0 {
		userId, err := customerUserId(tx, payload.CustomerId)
		if err != nil {
			return err
		}
		if userId != nil {
			var warranties []Warranty
			if err := tx.Where("id IN ?", payload.WarrantyIds).Order("id").Find(&warranties).Error; err != nil {
				return err
			}
			for _, w := range warranties {
				if err := createNotification(tx, userId, NotificationTypeWarranty,
					"Garantía "+w.Number,
					fmt.Sprintf("Tu garantía %s es válida hasta %s", w.Number, w.ExpiresAt.Format("2006-01-02")),
					fmt.Sprintf("/me/warranties?id=%d", w.ID)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func notifyLowStock(tx *gorm.DB, productIds []int) error {
	var products []Product
	err := tx.Where("id IN ? AND is_active = ? AND stock <= min_stock", utils.UniqueSlice(productIds), true).
		Order("id").Find(&products).Error
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := createNotification(tx, nil, NotificationTypeInventory,
			"Stock bajo: "+p.Name,
			fmt.Sprintf("%s (%s) tiene %d unidades, mínimo %d", p.Name, p.Code, p.Stock, p.MinStock),
			fmt.Sprintf("/products/%d", p.ID)); err != nil {
			return err
		}
	}
	return nil
}

func NotifySaleVoided(tx *gorm.DB, msg config.EventMessage) error {
	payload, err := decodePayload[SaleVoidedPayload](msg)
	if err != nil {
		return err
	}
	return createNotification(tx, nil, NotificationTypeSale,
		"Venta anulada "+payload.Number,
		fmt.Sprintf("Venta %s anulada: %s", payload.Number, payload.Reason),
		fmt.Sprintf("/sales/%d", payload.SaleId))
}

func NotifyServiceOrderCompleted(tx *gorm.DB, msg config.EventMessage) error {
	payload, err := decodePayload[ServiceOrderEventPayload](msg)
	if err != nil {
		return err
	}
	userId, err := customerUserId(tx, payload.CustomerId)
	if err != nil || userId == nil {
		return err
	}
	return createNotification(tx, userId, NotificationTypeService,
		"Servicio terminado "+payload.Number,
		fmt.Sprintf("La orden de servicio %s está lista para entrega", payload.Number),
		fmt.Sprintf("/me/service-orders/%d", payload.ServiceOrderId))
}

func NotifyServiceOrderInvoiced(tx *gorm.DB, msg config.EventMessage) error {
	payload, err := decodePayload[ServiceOrderEventPayload](msg)
	if err != nil {
		return err
	}
	userId, err := customerUserId(tx, payload.CustomerId)
	if err != nil || userId == nil {
		return err
	}
	return createNotification(tx, userId, NotificationTypeService,
		"Factura de servicio "+payload.Number,
		fmt.Sprintf("La orden %s fue facturada por %s", payload.Number, payload.Total.StringFixed(2)),
		fmt.Sprintf("/me/invoices?id=%d", payload.InvoiceId))
}

func NotifyPurchaseReceived(tx *gorm.DB, msg config.EventMessage) error {
	payload, err := decodePayload[PurchaseReceivedPayload](msg)
	if err != nil {
		return err
	}
	return createNotification(tx, nil, NotificationTypePurchase,
		"Compra recibida "+payload.Number,
		fmt.Sprintf("La compra %s ingresó %d productos al inventario", payload.Number, len(payload.ProductIds)),
		fmt.Sprintf("/purchases/%d", payload.PurchaseId))
}
