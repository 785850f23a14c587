package models_test

import (
	"testing"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func outboxMessage(t *testing.T, eventType string) models.OutboxRecord {
	t.Helper()
	var record models.OutboxRecord
	require.NoError(t, testDB().Where("event_type = ?", eventType).Order("id DESC").First(&record).Error)
	return record
}

func TestNotifyCheckoutCompleted(t *testing.T) {
	ctx := setupTestDB(t)
	user := registerCustomer(t, "sofia")
	customer, err := models.GetCustomerByUserId(ctx, user.ID)
	require.NoError(t, err)
	product := createTestProduct(t, ctx, "Audífonos", 2, "60.00", 3)

	_, err = models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	record := outboxMessage(t, models.EventCheckoutCompleted)
	require.NoError(t, testDB().Transaction(func(tx *gorm.DB) error {
		return models.NotifyCheckoutCompleted(tx, record.ToEventMessage())
	}))

	assert.EqualValues(t, 1, countRows[models.Notification](t, "notification_type = ? AND user_id IS NULL", models.NotificationTypeSale))
	assert.EqualValues(t, 1, countRows[models.Notification](t, "notification_type = ? AND user_id IS NULL", models.NotificationTypeInventory))
	assert.EqualValues(t, 1, countRows[models.Notification](t, "notification_type = ? AND user_id = ?", models.NotificationTypeWarranty, user.ID))

	// the customer only sees their own notification
	customerCtx := utils.SetRoleInContext(utils.SetUserIdInContext(ctx, user.ID), string(models.UserRoleCustomer))
	mine, err := models.ListNotifications(customerCtx, models.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, models.NotificationTypeWarranty, mine.Items[0].NotificationType)

	// staff see the broadcasts
	staff, err := models.ListNotifications(ctx, models.NotificationFilter{OnlyUnread: true})
	require.NoError(t, err)
	assert.Len(t, staff.Items, 2)

	read, err := models.MarkNotificationRead(customerCtx, mine.Items[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	_, err = models.MarkNotificationRead(customerCtx, staff.Items[0].ID)
	assert.ErrorIs(t, err, models.ErrNotificationNotFound)
}

func TestLowStockNotificationsCanBeDisabled(t *testing.T) {
	ctx := setupTestDB(t)
	t.Setenv("LOW_STOCK_NOTIFICATIONS", "false")
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Cargador", 1, "45.00", 0)

	_, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	record := outboxMessage(t, models.EventCheckoutCompleted)
	require.NoError(t, testDB().Transaction(func(tx *gorm.DB) error {
		return models.NotifyCheckoutCompleted(tx, record.ToEventMessage())
	}))
	assert.EqualValues(t, 0, countRows[models.Notification](t, "notification_type = ?", models.NotificationTypeInventory))
	assert.EqualValues(t, 1, countRows[models.Notification](t, "notification_type = ?", models.NotificationTypeSale))
}
