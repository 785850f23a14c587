package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentCheckoutsOnMySQL runs competing checkouts against real row
// locks: more buyers than units, every buyer holding the product in a cart.
func TestConcurrentCheckoutsOnMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "digitsoft_test")
	t.Setenv("CHECKOUT_REDIS_LOCK", "true")

	previous := config.GetDB()
	t.Cleanup(func() {
		config.SetDB(previous)
		config.SetRedisClient(nil)
	})
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := staffContext()
	product := createTestProduct(t, ctx, "Consola portátil", 3, "1200.00", 12)

	const buyers = 8
	carts := make([]int, 0, buyers)
	for i := 0; i < buyers; i++ {
		customer := createTestCustomer(t, ctx)
		cart, err := models.AddCartItem(ctx, customer.ID, product.ID, 1)
		require.NoError(t, err)
		carts = append(carts, cart.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, cartId := range carts {
		wg.Add(1)
		go func(cartId int) {
			defer wg.Done()
			_, err := models.Checkout(context.Background(), &models.NewCheckout{CartId: cartId, PaymentMethod: models.PaymentMethodCash})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("cart %d: %v", cartId, err)
			}
		}(cartId)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, buyers-3, rejected)
	assert.Equal(t, 0, productStock(t, product.ID))
	assert.EqualValues(t, 3, countRows[models.Sale](t, ""))
	assert.EqualValues(t, 3, countRows[models.Invoice](t, ""))
	assert.EqualValues(t, buyers-3, countRows[models.Cart](t, "status = ?", models.CartStatusActive))
}
