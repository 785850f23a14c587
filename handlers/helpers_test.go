package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testSeq int64

func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("CHECKOUT_REDIS_LOCK", "false")
	t.Setenv("EVENT_BROKER", "none")

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testSeq, 1))
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
	return staffSession().context()
}

// session stands in for a resolved token.
type session struct {
	userId     int
	username   string
	role       models.UserRole
	customerId int
}

func staffSession() *session {
	return &session{userId: 1, username: "admin", role: models.UserRoleAdmin}
}

func customerSession(customerId int) *session {
	return &session{userId: 50, username: "cliente", role: models.UserRoleCustomer, customerId: customerId}
}

func (s *session) context() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, s.userId)
	ctx = utils.SetUsernameInContext(ctx, s.username)
	ctx = utils.SetUserNameInContext(ctx, s.username)
	ctx = utils.SetRoleInContext(ctx, string(s.role))
	if s.customerId > 0 {
		ctx = utils.SetCustomerIdInContext(ctx, s.customerId)
	}
	return ctx
}

// newRouter mounts the API behind a fake session; nil means anonymous.
func newRouter(s *session) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if s != nil {
			ctx := s.context()
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	})
	RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createCustomer(t *testing.T, ctx context.Context) *models.Customer {
	t.Helper()
	n := atomic.AddInt64(&testSeq, 1)
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		DocumentNumber: fmt.Sprintf("30%08d", n),
		FirstName:      "Valentina",
		LastName:       "Ospina",
		CustomerType:   models.CustomerTypeNatural,
		Email:          fmt.Sprintf("valentina%d@example.com", n),
		City:           "Cali",
	})
	require.NoError(t, err)
	return customer
}

func createProduct(t *testing.T, ctx context.Context, stock int, price string, warrantyMonths int) *models.Product {
	t.Helper()
	n := atomic.AddInt64(&testSeq, 1)
	salePrice := decimal.RequireFromString(price)
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           fmt.Sprintf("Monitor %d", n),
		Category:       "Monitores",
		PurchasePrice:  salePrice.Div(decimal.NewFromInt(2)),
		SalePrice:      salePrice,
		Stock:          stock,
		MinStock:       1,
		MaxStock:       100,
		WarrantyMonths: &warrantyMonths,
	})
	require.NoError(t, err)
	return product
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
