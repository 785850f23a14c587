package models_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutCreatesSaleInvoiceAndWarranties(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	laptop := createTestProduct(t, ctx, "Laptop HP", 5, "100.00", 12)
	cable := createTestProduct(t, ctx, "Cable HDMI", 10, "10.00", 0)

	_, err := models.AddCartItem(ctx, customer.ID, laptop.ID, 2)
	require.NoError(t, err)
	cart, err := models.AddCartItem(ctx, customer.ID, cable.ID, 1)
	require.NoError(t, err)

	sale, err := models.Checkout(ctx, &models.NewCheckout{
		CustomerId:    customer.ID,
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sale.Number, "V"), sale.Number)
	assert.Len(t, sale.Number, len("V")+8+4)
	assert.Equal(t, models.SaleStatusPaid, sale.Status)
	assert.Equal(t, "210.00", sale.Subtotal.StringFixed(2))
	assert.Equal(t, "39.90", sale.Tax.StringFixed(2))
	assert.Equal(t, "249.90", sale.Total.StringFixed(2))
	assert.Len(t, sale.Details, 2)

	assert.Equal(t, 3, productStock(t, laptop.ID))
	assert.Equal(t, 9, productStock(t, cable.ID))

	var invoice models.Invoice
	require.NoError(t, testDB().Where("sale_id = ?", sale.ID).First(&invoice).Error)
	assert.Equal(t, models.InvoiceStatusIssued, invoice.Status)
	assert.True(t, invoice.Total.Equal(sale.Total))
	assert.True(t, strings.HasPrefix(invoice.Number, "F"))

	// only the product with warranty months gets one, covering 12*30 days
	var warranties []models.Warranty
	require.NoError(t, testDB().Where("sale_id = ?", sale.ID).Find(&warranties).Error)
	require.Len(t, warranties, 1)
	assert.Equal(t, laptop.ID, *warranties[0].ProductId)
	assert.Equal(t, models.WarrantyStatusActive, warranties[0].Status)
	assert.Equal(t, 360*24, int(warranties[0].ExpiresAt.Sub(warranties[0].StartsAt).Hours()))

	var converted models.Cart
	require.NoError(t, testDB().First(&converted, cart.ID).Error)
	assert.Equal(t, models.CartStatusConverted, converted.Status)
	require.NotNil(t, converted.SaleId)
	assert.Equal(t, sale.ID, *converted.SaleId)
	assert.Nil(t, converted.ActiveCustomerId)

	assert.EqualValues(t, 1, countRows[models.OutboxRecord](t, "event_type = ? AND reference_id = ?", models.EventCheckoutCompleted, sale.ID))
}

func TestCheckoutScenarioTotals(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Monitor 24", 5, "100.00", 12)
	_, err := models.AddCartItem(ctx, customer.ID, product.ID, 2)
	require.NoError(t, err)

	sale, err := models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodDebitCard})
	require.NoError(t, err)
	assert.Equal(t, "200.00", sale.Subtotal.StringFixed(2))
	assert.Equal(t, "38.00", sale.Tax.StringFixed(2))
	assert.Equal(t, "238.00", sale.Total.StringFixed(2))
}

func TestCheckoutTwiceRejectsConvertedCart(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Teclado", 5, "50.00", 6)
	cart, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = models.Checkout(ctx, &models.NewCheckout{CartId: cart.ID, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	_, err = models.Checkout(ctx, &models.NewCheckout{CartId: cart.ID, PaymentMethod: models.PaymentMethodCash})
	assert.True(t, errors.Is(err, models.ErrCartAlreadyConverted))
	assert.Equal(t, utils.ErrorKindConflict, utils.KindOf(err))

	assert.EqualValues(t, 1, countRows[models.Sale](t, ""))
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestConcurrentCheckoutOfSameCartProducesOneSale(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "SSD 1TB", 10, "300.00", 12)
	cart, err := models.AddCartItem(ctx, customer.ID, product.ID, 2)
	require.NoError(t, err)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		converted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := models.Checkout(ctx, &models.NewCheckout{CartId: cart.ID, PaymentMethod: models.PaymentMethodCash})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrCartAlreadyConverted):
				converted++
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, converted)
	assert.EqualValues(t, 1, countRows[models.Sale](t, ""))
	assert.EqualValues(t, 1, countRows[models.Invoice](t, ""))
	assert.Equal(t, 8, productStock(t, product.ID))
}

func TestCheckoutFailureLeavesNothingBehind(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Tarjeta de video", 5, "900.00", 24)
	cart, err := models.AddCartItem(ctx, customer.ID, product.ID, 2)
	require.NoError(t, err)

	// stock drops below the cart quantity after the item was added
	_, err = models.AdjustStock(ctx, product.ID, &models.NewStockAdjustment{Quantity: -4, Reason: "conteo físico"})
	require.NoError(t, err)
	require.Equal(t, 1, productStock(t, product.ID))

	_, err = models.Checkout(ctx, &models.NewCheckout{CartId: cart.ID, PaymentMethod: models.PaymentMethodCash})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))
	assert.Contains(t, err.Error(), "Tarjeta de video")

	assert.Equal(t, 1, productStock(t, product.ID))
	assert.EqualValues(t, 0, countRows[models.Sale](t, ""))
	assert.EqualValues(t, 0, countRows[models.Invoice](t, ""))
	assert.EqualValues(t, 0, countRows[models.Warranty](t, ""))
	assert.EqualValues(t, 0, countRows[models.OutboxRecord](t, ""))

	var still models.Cart
	require.NoError(t, testDB().First(&still, cart.ID).Error)
	assert.Equal(t, models.CartStatusActive, still.Status)
	assert.Nil(t, still.SaleId)
}

func TestCheckoutIdempotencyKeyReplaysSale(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Mouse gamer", 5, "75.00", 6)
	cart, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)

	input := func() *models.NewCheckout {
		return &models.NewCheckout{CartId: cart.ID, PaymentMethod: models.PaymentMethodTransfer, IdempotencyKey: "pos-7f3a"}
	}
	first, err := models.Checkout(ctx, input())
	require.NoError(t, err)
	second, err := models.Checkout(ctx, input())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Number, second.Number)
	assert.EqualValues(t, 1, countRows[models.Sale](t, ""))
	assert.Equal(t, 4, productStock(t, product.ID))

	other := createTestCustomer(t, ctx)
	otherCart, err := models.AddCartItem(ctx, other.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = models.Checkout(ctx, &models.NewCheckout{CartId: otherCart.ID, PaymentMethod: models.PaymentMethodCash, IdempotencyKey: "pos-7f3a"})
	assert.Equal(t, utils.ErrorKindConflict, utils.KindOf(err))
}

func TestCustomerCheckoutReplay(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Memoria RAM 16GB", 5, "60.00", 12)
	_, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)

	input := func(key string) *models.NewCheckout {
		return &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash, IdempotencyKey: key}
	}
	first, err := models.Checkout(ctx, input("web-91c2"))
	require.NoError(t, err)

	second, err := models.Checkout(ctx, input("web-91c2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = models.Checkout(ctx, input(""))
	assert.True(t, errors.Is(err, models.ErrCartAlreadyConverted))

	other := createTestCustomer(t, ctx)
	_, err = models.Checkout(ctx, &models.NewCheckout{CustomerId: other.ID, PaymentMethod: models.PaymentMethodCash, IdempotencyKey: "web-91c2"})
	assert.Equal(t, utils.ErrorKindConflict, utils.KindOf(err))

	assert.EqualValues(t, 1, countRows[models.Sale](t, ""))
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestCheckoutValidation(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)

	_, err := models.Checkout(ctx, &models.NewCheckout{PaymentMethod: models.PaymentMethodCash})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	_, err = models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: "BARTER"})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	_, err = models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash})
	assert.True(t, errors.Is(err, models.ErrEmptyCart))

	product := createTestProduct(t, ctx, "Hub USB", 5, "40.00", 3)
	_, err = models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = models.Checkout(ctx, &models.NewCheckout{
		CustomerId:    customer.ID,
		PaymentMethod: models.PaymentMethodCash,
		Discount:      dec("100"),
	})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))
}

func TestVoidSaleRestoresStock(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createTestCustomer(t, ctx)
	product := createTestProduct(t, ctx, "Tablet", 4, "500.00", 12)
	_, err := models.AddCartItem(ctx, customer.ID, product.ID, 3)
	require.NoError(t, err)
	sale, err := models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCredit})
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCredit, sale.Status)
	require.Equal(t, 1, productStock(t, product.ID))

	voided, err := models.VoidSale(ctx, sale.ID, &models.VoidSaleInput{Reason: "cliente desistió"})
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusVoid, voided.Status)
	assert.Equal(t, 4, productStock(t, product.ID))
	assert.EqualValues(t, 1, countRows[models.Invoice](t, "sale_id = ? AND status = ?", sale.ID, models.InvoiceStatusVoid))
	assert.EqualValues(t, 1, countRows[models.Warranty](t, "sale_id = ? AND status = ?", sale.ID, models.WarrantyStatusRejected))

	_, err = models.VoidSale(ctx, sale.ID, &models.VoidSaleInput{Reason: "otra vez"})
	assert.True(t, errors.Is(err, models.ErrSaleAlreadyVoid))
}
