package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForKind(t *testing.T) {
	cases := map[utils.ErrorKind]int{
		utils.ErrorKindValidation:      http.StatusBadRequest,
		utils.ErrorKindUnauthenticated: http.StatusUnauthorized,
		utils.ErrorKindPermission:      http.StatusForbidden,
		utils.ErrorKindNotFound:        http.StatusNotFound,
		utils.ErrorKindConflict:        http.StatusConflict,
		utils.ErrorKindInternal:        http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, statusForKind(kind), kind)
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, "test", errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, "test", utils.NewConflictError("database busy, please retry", true))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"database busy, please retry","retryable":true}`, w.Body.String())
}

func TestRoleChecks(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createCustomer(t, ctx)

	w := doJSON(t, newRouter(nil), http.MethodGet, "/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, newRouter(customerSession(customer.ID)), http.MethodGet, "/customers", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, newRouter(staffSession()), http.MethodGet, "/me/cart", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, newRouter(staffSession()), http.MethodGet, "/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.PaginatedList[models.Customer]](t, w)
	assert.EqualValues(t, 1, list.PageInfo.TotalCount)
}

func TestCustomerCartCheckout(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createCustomer(t, ctx)
	product := createProduct(t, ctx, 5, "100.00", 12)
	r := newRouter(customerSession(customer.ID))

	w := doJSON(t, r, http.MethodPost, "/me/cart/items", gin.H{"product_id": product.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := decode[models.CartDetail](t, w)
	assert.True(t, decimal.NewFromInt(200).Equal(cart.Totals.Subtotal))
	assert.True(t, decimal.NewFromInt(38).Equal(cart.Totals.Tax))
	assert.True(t, decimal.NewFromInt(238).Equal(cart.Totals.Total))
	assert.Equal(t, 2, cart.Totals.ItemCount)

	w = doJSON(t, r, http.MethodPost, "/me/cart/checkout", gin.H{"payment_method": models.PaymentMethodCash})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode[models.Sale](t, w)
	assert.Equal(t, customer.ID, sale.CustomerId)
	assert.True(t, decimal.NewFromInt(238).Equal(sale.Total))

	w = doJSON(t, r, http.MethodGet, "/me/sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sales := decode[models.PaginatedList[models.Sale]](t, w)
	require.Len(t, sales.Items, 1)
	assert.Equal(t, sale.ID, sales.Items[0].ID)

	w = doJSON(t, r, http.MethodGet, "/me/warranties", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[models.PaginatedList[models.Warranty]](t, w).PageInfo.TotalCount)
}

func TestCustomerCheckoutReplayOverHTTP(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createCustomer(t, ctx)
	product := createProduct(t, ctx, 5, "100.00", 12)
	r := newRouter(customerSession(customer.ID))

	w := doJSON(t, r, http.MethodPost, "/me/cart/items", gin.H{"product_id": product.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := gin.H{"payment_method": models.PaymentMethodCash, "idempotency_key": "app-5d10"}
	w = doJSON(t, r, http.MethodPost, "/me/cart/checkout", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[models.Sale](t, w)

	w = doJSON(t, r, http.MethodPost, "/me/cart/checkout", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, first.ID, decode[models.Sale](t, w).ID)

	w = doJSON(t, r, http.MethodPost, "/me/cart/checkout", gin.H{"payment_method": models.PaymentMethodCash})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "cart already converted")
}

func TestUpdateCartQuantityToZeroRemovesLine(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createCustomer(t, ctx)
	kept := createProduct(t, ctx, 5, "100.00", 12)
	dropped := createProduct(t, ctx, 5, "40.00", 0)
	r := newRouter(customerSession(customer.ID))

	for _, id := range []int{kept.ID, dropped.ID} {
		w := doJSON(t, r, http.MethodPost, "/me/cart/items", gin.H{"product_id": id, "quantity": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := doJSON(t, r, http.MethodPut, "/me/cart/items/"+itoa(dropped.ID), gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := decode[models.CartDetail](t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, kept.ID, cart.Items[0].ProductId)
	assert.Equal(t, 1, cart.Totals.ItemCount)
	assert.True(t, decimal.NewFromInt(100).Equal(cart.Totals.Subtotal))
	assert.True(t, decimal.NewFromInt(119).Equal(cart.Totals.Total))

	w = doJSON(t, r, http.MethodPut, "/me/cart/items/"+itoa(kept.ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutWithoutStockIsRejected(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createCustomer(t, ctx)
	product := createProduct(t, ctx, 1, "50.00", 0)
	r := newRouter(staffSession())
	cartPath := "/customers/" + itoa(customer.ID) + "/cart"

	w := doJSON(t, r, http.MethodPost, cartPath+"/items", gin.H{"product_id": product.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := decode[models.CartDetail](t, w)
	// the line is capped at the stock on hand
	assert.Equal(t, 1, cart.Totals.ItemCount)

	// another channel asks for more than is left
	require.NoError(t, config.GetDB().Model(&models.CartItem{}).
		Where("cart_id = ?", cart.ID).Update("quantity", 2).Error)

	w = doJSON(t, r, http.MethodPost, cartPath+"/checkout", gin.H{"payment_method": models.PaymentMethodCash})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "insufficient stock")

	stored, err := models.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stock)

	w = doJSON(t, r, http.MethodGet, cartPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CartStatusActive, decode[models.CartDetail](t, w).Status)
}

func TestBindingErrorsNameJSONFields(t *testing.T) {
	setupTestDB(t)
	w := doJSON(t, newRouter(staffSession()), http.MethodPost, "/products", gin.H{"stock": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[gin.H](t, w)
	assert.Contains(t, body["error"], "name (required)")
	assert.Contains(t, body["error"], "stock (gte)")
}

func TestProductLifecycle(t *testing.T) {
	setupTestDB(t)
	staff := newRouter(staffSession())
	public := newRouter(nil)

	w := doJSON(t, staff, http.MethodPost, "/products", gin.H{
		"name": "Teclado mecánico", "category": "Periféricos",
		"purchase_price": "80.00", "sale_price": "120.00", "stock": 4, "min_stock": 1, "max_stock": 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decode[models.Product](t, w)
	assert.NotEmpty(t, product.Code)

	w = doJSON(t, public, http.MethodGet, "/catalog/products/"+itoa(product.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, staff, http.MethodPost, "/products/"+itoa(product.ID)+"/stock", gin.H{"quantity": -3, "reason": "conteo físico"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[models.Product](t, w).Stock)

	w = doJSON(t, staff, http.MethodGet, "/products/"+itoa(product.ID)+"/movements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[models.PaginatedList[models.StockMovement]](t, w).Items)

	w = doJSON(t, staff, http.MethodGet, "/products/low-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[lowStockResponse](t, w).Items, 1)

	w = doJSON(t, staff, http.MethodPut, "/products/"+itoa(product.ID)+"/active", gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, public, http.MethodGet, "/catalog/products/"+itoa(product.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, staff, http.MethodGet, "/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadProductImageRequiresFile(t *testing.T) {
	ctx := setupTestDB(t)
	product := createProduct(t, ctx, 3, "10.00", 0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "sin imagen"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/products/"+itoa(product.ID)+"/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newRouter(staffSession()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSalesReportDownload(t *testing.T) {
	ctx := setupTestDB(t)
	customer := createCustomer(t, ctx)
	product := createProduct(t, ctx, 5, "100.00", 0)
	_, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = models.Checkout(ctx, &models.NewCheckout{CustomerId: customer.ID, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	r := newRouter(staffSession())
	w := doJSON(t, r, http.MethodGet, "/reports/sales.csv", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reporte_ventas_")
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeff"))

	w = doJSON(t, r, http.MethodGet, "/reports/inventory.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	logs, err := models.ListActivityLogs(ctx, models.ActivityLogFilter{ActivityType: models.ActivityTypeExport})
	require.NoError(t, err)
	assert.EqualValues(t, 2, logs.PageInfo.TotalCount)

	w = doJSON(t, r, http.MethodGet, "/reports/stats?fecha_inicio=2000-01-01", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginReturnsHome(t *testing.T) {
	ctx := setupTestDB(t)
	_, err := models.CreateUser(ctx, &models.NewUser{
		Username: "cajero", Password: "Caja2024x", Name: "Cajero Principal", Role: models.UserRoleAdmin,
	})
	require.NoError(t, err)
	r := newRouter(nil)

	w := doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "cajero", "password": "Caja2024x"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decode[models.LoginInfo](t, w)
	assert.NotEmpty(t, info.Token)
	assert.Equal(t, "/admin/dashboard", info.Home)

	w = doJSON(t, r, http.MethodPost, "/login", gin.H{"username": "cajero", "password": "incorrecta1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPubSubPushAcknowledgesMalformedMessages(t *testing.T) {
	setupTestDB(t)
	r := newRouter(nil)

	w := doJSON(t, r, http.MethodPost, "/pubsub", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/pubsub", gin.H{"message": gin.H{"data": "bm90IGpzb24="}})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestVerifyInvoiceRejectsBadToken(t *testing.T) {
	setupTestDB(t)
	r := newRouter(nil)
	w := doJSON(t, r, http.MethodGet, "/verify/invoice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodGet, "/verify/invoice?token=abc.def.ghi", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
