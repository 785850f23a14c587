package models_test

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq int64

// setupTestDB points the global connection at a fresh in-memory sqlite
// database with the full schema. Redis stays disconnected.
func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	t.Setenv("CHECKOUT_REDIS_LOCK", "false")

	dsn := fmt.Sprintf("file:digitsoft_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
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
	return staffContext()
}

func staffContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "admin")
	ctx = utils.SetUserNameInContext(ctx, "Administrator")
	ctx = utils.SetRoleInContext(ctx, string(models.UserRoleAdmin))
	return ctx
}

var testDocumentSeq int64

func createTestCustomer(t *testing.T, ctx context.Context) *models.Customer {
	t.Helper()
	n := atomic.AddInt64(&testDocumentSeq, 1)
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		DocumentNumber: fmt.Sprintf("10%08d", n),
		FirstName:      "Laura",
		LastName:       "Gómez",
		CustomerType:   models.CustomerTypeNatural,
		Email:          fmt.Sprintf("laura%d@example.com", n),
		City:           "Bogotá",
	})
	require.NoError(t, err)
	return customer
}

func createTestProduct(t *testing.T, ctx context.Context, name string, stock int, price string, warrantyMonths int) *models.Product {
	t.Helper()
	salePrice := decimal.RequireFromString(price)
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           name,
		Category:       "Portátiles",
		PurchasePrice:  salePrice.Mul(decimal.RequireFromString("0.7")).Round(2),
		SalePrice:      salePrice,
		Stock:          stock,
		MinStock:       1,
		MaxStock:       100,
		WarrantyMonths: &warrantyMonths,
	})
	require.NoError(t, err)
	return product
}

func productStock(t *testing.T, id int) int {
	t.Helper()
	var product models.Product
	require.NoError(t, config.GetDB().First(&product, id).Error)
	return product.Stock
}

func countRows[T any](t *testing.T, where string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := config.GetDB().Model(new(T))
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("digitsoft-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("digitsoft-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=digitsoft_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

func testDB() *gorm.DB {
	return config.GetDB()
}
