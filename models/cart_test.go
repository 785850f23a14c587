package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// assertCartConsistent checks the cached counters against the lines.
func assertCartConsistent(t *testing.T, cartId int) {
	t.Helper()
	var cart models.Cart
	require.NoError(t, config.GetDB().Preload("Items").First(&cart, cartId).Error)
	subtotal := decimal.Zero
	items := 0
	for _, item := range cart.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items += item.Quantity
		assert.True(t, item.Subtotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))))
	}
	assert.True(t, cart.Subtotal.Equal(subtotal), "subtotal %s != %s", cart.Subtotal, subtotal)
	assert.Equal(t, items, cart.TotalItems)
}

func TestCartTotalsScenario(t *testing.T) {
	cart := &models.Cart{Items: []models.CartItem{{Quantity: 2, UnitPrice: dec("100.00")}}}
	summary := models.CartTotals(cart, dec("19"))
	assert.Equal(t, "200.00", summary.Subtotal.StringFixed(2))
	assert.Equal(t, "38.00", summary.Tax.StringFixed(2))
	assert.Equal(t, "238.00", summary.Total.StringFixed(2))
	assert.Equal(t, 2, summary.ItemCount)
}

func TestCartMutationsKeepTotalsConsistent(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	laptop := createTestProduct(t, ctx, "Laptop Lenovo", 5, "100.00", 12)
	mouse := createTestProduct(t, ctx, "Mouse inalámbrico", 20, "35.50", 0)

	detail, err := models.AddCartItem(ctx, customer.ID, laptop.ID, 2)
	require.NoError(t, err)
	cartId := detail.ID
	assert.Equal(t, "238.00", detail.Totals.Total.StringFixed(2))
	assertCartConsistent(t, cartId)

	detail, err = models.AddCartItem(ctx, customer.ID, mouse.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, cartId, detail.ID)
	assert.Equal(t, 5, detail.Totals.ItemCount)
	assertCartConsistent(t, cartId)

	// adding again merges into the same line
	detail, err = models.AddCartItem(ctx, customer.ID, laptop.ID, 1)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 2)
	assertCartConsistent(t, cartId)

	detail, err = models.UpdateCartItemQuantity(ctx, customer.ID, mouse.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, detail.Totals.ItemCount)
	assertCartConsistent(t, cartId)

	detail, err = models.UpdateCartItemQuantity(ctx, customer.ID, mouse.ID, 0)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)
	assertCartConsistent(t, cartId)

	detail, err = models.RemoveCartItem(ctx, customer.ID, laptop.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
	assert.True(t, detail.Totals.Total.IsZero())
	assertCartConsistent(t, cartId)
}

func TestAddCartItemClampsToStock(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Memoria RAM 16GB", 3, "220000", 12)

	detail, err := models.AddCartItem(ctx, customer.ID, product.ID, 10)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 3, detail.Items[0].Quantity)

	detail, err = models.AddCartItem(ctx, customer.ID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Items[0].Quantity)

	detail, err = models.UpdateCartItemQuantity(ctx, customer.ID, product.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Items[0].Quantity)
}

func TestAddCartItemRejectsUnavailableProducts(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Impresora", 0, "450000", 12)

	_, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	assert.True(t, errors.Is(err, models.ErrOutOfStock))
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	_, err = models.AddCartItem(ctx, customer.ID, product.ID, 0)
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	inStock := createTestProduct(t, ctx, "Router", 4, "150000", 12)
	_, err = models.ToggleActiveProduct(ctx, inStock.ID, false)
	require.NoError(t, err)
	_, err = models.AddCartItem(ctx, customer.ID, inStock.ID, 1)
	assert.True(t, errors.Is(err, models.ErrOutOfStock))
}

func TestAddCartItemReplacesExpiredCart(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Webcam", 10, "90000", 6)

	first, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	require.NoError(t, config.GetDB().Model(&models.Cart{}).Where("id = ?", first.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	second, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	var old models.Cart
	require.NoError(t, config.GetDB().First(&old, first.ID).Error)
	assert.Equal(t, models.CartStatusExpired, old.Status)
}

func TestSweepCarts(t *testing.T) {
	ctx := setupTestDB(t)
	product := createTestProduct(t, ctx, "Parlantes", 10, "80000", 6)
	idle := createTestCustomer(t, ctx)
	expired := createTestCustomer(t, ctx)
	fresh := createTestCustomer(t, ctx)

	idleCart, err := models.AddCartItem(ctx, idle.ID, product.ID, 1)
	require.NoError(t, err)
	expiredCart, err := models.AddCartItem(ctx, expired.ID, product.ID, 1)
	require.NoError(t, err)
	freshCart, err := models.AddCartItem(ctx, fresh.ID, product.ID, 1)
	require.NoError(t, err)

	now := time.Now().UTC()
	db := config.GetDB()
	require.NoError(t, db.Exec("UPDATE carts SET updated_at = ? WHERE id = ?", now.Add(-96*time.Hour), idleCart.ID).Error)
	require.NoError(t, db.Exec("UPDATE carts SET expires_at = ? WHERE id = ?", now.Add(-time.Minute), expiredCart.ID).Error)

	result, err := models.SweepCarts(ctx, now, 72*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Expired)
	assert.EqualValues(t, 1, result.Abandoned)

	for id, status := range map[int]models.CartStatus{
		idleCart.ID:    models.CartStatusAbandoned,
		expiredCart.ID: models.CartStatusExpired,
		freshCart.ID:   models.CartStatusActive,
	} {
		var cart models.Cart
		require.NoError(t, db.First(&cart, id).Error)
		assert.Equal(t, status, cart.Status, "cart %d", id)
	}
}

func TestUpdateCartStatusGuardsConverted(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Disco externo", 5, "250000", 12)
	detail, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = models.UpdateCartStatus(ctx, detail.ID, &models.CartStatusInput{Status: models.CartStatusConverted})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	updated, err := models.UpdateCartStatus(ctx, detail.ID, &models.CartStatusInput{Status: models.CartStatusAbandoned})
	require.NoError(t, err)
	assert.Equal(t, models.CartStatusAbandoned, updated.Status)
}
