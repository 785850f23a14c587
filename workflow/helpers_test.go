package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq int64

func setupTestDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()
	t.Setenv("CHECKOUT_REDIS_LOCK", "false")
	t.Setenv("EVENT_BROKER", "none")

	dsn := fmt.Sprintf("file:workflow_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	conn, err := config.OpenSQLite(dsn)
	require.NoError(t, err)

	previous := config.GetDB()
	config.SetDB(conn)
	config.SetRedisClient(nil)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(previous)
	})
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "admin")
	ctx = utils.SetRoleInContext(ctx, string(models.UserRoleAdmin))
	return ctx, conn
}

// checkoutOnce sells one unit of a fresh product and returns the outbox record.
func checkoutOnce(t *testing.T, ctx context.Context, db *gorm.DB) models.OutboxRecord {
	t.Helper()
	n := atomic.AddInt64(&testDBSeq, 1)
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		DocumentNumber: fmt.Sprintf("20%08d", n),
		FirstName:      "Mateo",
		LastName:       "Rincón",
		CustomerType:   models.CustomerTypeNatural,
		Email:          fmt.Sprintf("mateo%d@example.com", n),
		City:           "Medellín",
	})
	require.NoError(t, err)
	warranty := 6
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           fmt.Sprintf("Mouse %d", n),
		Category:       "Periféricos",
		PurchasePrice:  decimal.RequireFromString("20.00"),
		SalePrice:      decimal.RequireFromString("35.00"),
		Stock:          10,
		MinStock:       1,
		MaxStock:       50,
		WarrantyMonths: &warranty,
	})
	require.NoError(t, err)

	_, err = models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	sale, err := models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	var record models.OutboxRecord
	require.NoError(t, db.Where("event_type = ? AND reference_id = ?", models.EventCheckoutCompleted, sale.ID).First(&record).Error)
	return record
}

func reload(t *testing.T, db *gorm.DB, id int) models.OutboxRecord {
	t.Helper()
	var record models.OutboxRecord
	require.NoError(t, db.First(&record, id).Error)
	return record
}

func countNotifications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&n).Error)
	return n
}
