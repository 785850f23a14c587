package reports

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportDBSeq int64

func setupReportDB(t *testing.T) context.Context {
	t.Helper()
	t.Setenv("CHECKOUT_REDIS_LOCK", "false")
	dsn := fmt.Sprintf("file:digitsoft_reports_%d?mode=memory&cache=shared", atomic.AddInt64(&reportDBSeq, 1))
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

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUsernameInContext(ctx, "admin")
	return utils.SetRoleInContext(ctx, string(models.UserRoleAdmin))
}

// sellTo checks out qty units of a fresh product for a fresh customer.
func sellTo(t *testing.T, ctx context.Context, n int, price string, qty int) *models.Sale {
	t.Helper()
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		DocumentNumber: fmt.Sprintf("52%06d", n),
		FirstName:      "Cliente",
		LastName:       fmt.Sprint(n),
		CustomerType:   models.CustomerTypeNatural,
		Email:          fmt.Sprintf("cliente%d@example.com", n),
	})
	require.NoError(t, err)
	months := 12
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           fmt.Sprintf("Producto %d", n),
		PurchasePrice:  decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		SalePrice:      decimal.RequireFromString(price),
		Stock:          10,
		MinStock:       2,
		MaxStock:       50,
		WarrantyMonths: &months,
	})
	require.NoError(t, err)
	_, err = models.AddCartItem(ctx, customer.ID, product.ID, qty)
	require.NoError(t, err)
	sale, err := models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)
	return sale
}

func TestSalesReportTotals(t *testing.T) {
	ctx := setupReportDB(t)
	sellTo(t, ctx, 1, "100.00", 2)
	sellTo(t, ctx, 2, "50.00", 1)

	today := time.Now().In(utils.LoadLocation(utils.DefaultTimezone)).Format("2006-01-02")
	tbl, err := SalesReport(ctx, Period{From: today, To: today})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Len(t, tbl.Headers, 10)
	assert.Equal(t, "Cliente 1", tbl.Rows[0][2])
	assert.Equal(t, "$238.00", tbl.Rows[0][7])
	assert.Equal(t, "Efectivo", tbl.Rows[0][8])
	assert.Equal(t, "Pagada", tbl.Rows[0][9])
	require.Len(t, tbl.Summary, 1)
	assert.Equal(t, "TOTAL GENERAL", tbl.Summary[0][0])
	assert.Equal(t, "$297.50", tbl.Summary[0][7])

	empty, err := SalesReport(ctx, Period{From: "2001-01-01", To: "2001-01-31"})
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)
	assert.Equal(t, "$0.00", empty.Summary[0][7])
}

func TestInventoryReportSummary(t *testing.T) {
	ctx := setupReportDB(t)
	sellTo(t, ctx, 1, "10.00", 9)

	tbl, err := InventoryReport(ctx)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "1", tbl.Rows[0][4])
	assert.Equal(t, []string{"Productos con Stock Bajo:", "1"}, tbl.Summary[2])
	assert.Equal(t, []string{"Valor Total del Inventario:", "$10.00"}, tbl.Summary[3])
}

func TestSalesStatisticsExcludesVoidSales(t *testing.T) {
	ctx := setupReportDB(t)
	sellTo(t, ctx, 1, "100.00", 2)
	voided := sellTo(t, ctx, 2, "50.00", 1)
	_, err := models.VoidSale(ctx, voided.ID, &models.VoidSaleInput{Reason: "error de caja"})
	require.NoError(t, err)

	stats, err := GetSalesStatistics(ctx, Period{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Totals.SaleCount)
	assert.Equal(t, "238.00", stats.Totals.Revenue.StringFixed(2))
	assert.Equal(t, "238.00", stats.Totals.AverageSale.StringFixed(2))
	require.Len(t, stats.TopProducts, 1)
	assert.EqualValues(t, 2, stats.TopProducts[0].QuantitySold)
	require.Len(t, stats.FrequentCustomers, 1)
	assert.Equal(t, "Cliente 1", stats.FrequentCustomers[0].Name)
}
