package models_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	ctx := setupTestDB(t)
	product := createTestProduct(t, ctx, "SSD 1TB", 10, "350000", 12)

	const workers = 8
	const qty = 3

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(ref int) {
			defer wg.Done()
			err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return models.DecrementStock(tx, product.ID, qty, models.StockReferenceTypeSale, ref)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i + 1)
	}
	wg.Wait()

	assert.Equal(t, 10/qty, succeeded)
	assert.Equal(t, workers-10/qty, insufficient)
	assert.Equal(t, 10%qty, productStock(t, product.ID))
	// initial stock movement plus one per successful decrement
	assert.EqualValues(t, 1+succeeded, countRows[models.StockMovement](t, "product_id = ?", product.ID))
}

func TestDecrementStockNamesProduct(t *testing.T) {
	ctx := setupTestDB(t)
	product := createTestProduct(t, ctx, "Monitor 24", 1, "600000", 12)

	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		return models.DecrementStock(tx, product.ID, 2, models.StockReferenceTypeSale, 1)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))
	assert.Contains(t, err.Error(), "Monitor 24")
	assert.Equal(t, 1, productStock(t, product.ID))
}

func TestStockMovementsRecordBalance(t *testing.T) {
	ctx := setupTestDB(t)
	product := createTestProduct(t, ctx, "Teclado mecánico", 4, "180000", 6)

	_, err := models.AdjustStock(ctx, product.ID, &models.NewStockAdjustment{Quantity: 6, Reason: "conteo físico"})
	require.NoError(t, err)
	_, err = models.AdjustStock(ctx, product.ID, &models.NewStockAdjustment{Quantity: -3, Reason: "unidad dañada"})
	require.NoError(t, err)

	_, err = models.AdjustStock(ctx, product.ID, &models.NewStockAdjustment{Quantity: -50, Reason: "error"})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	movements, err := models.ListStockMovements(ctx, product.ID, models.StockMovementFilter{})
	require.NoError(t, err)
	require.Len(t, movements.Items, 3)
	// newest first
	assert.Equal(t, -3, movements.Items[0].Quantity)
	assert.Equal(t, 7, movements.Items[0].BalanceAfter)
	assert.Equal(t, 6, movements.Items[1].Quantity)
	assert.Equal(t, 10, movements.Items[1].BalanceAfter)
	assert.Equal(t, 7, productStock(t, product.ID))
}
