package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateContact(t *testing.T) {
	assert.NoError(t, ValidateContact("", ""))
	assert.NoError(t, ValidateContact("ventas@digitsoft.co", "3001234567"))
	assert.Equal(t, ErrorKindValidation, KindOf(ValidateContact("not-an-email", "")))
	assert.Equal(t, ErrorKindValidation, KindOf(ValidateContact("", "12")))
}

func TestParseDateRange(t *testing.T) {
	start, end, err := ParseDateRange("2024-03-01", "2024-03-31", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *start)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *end)

	start, end, err = ParseDateRange("", "", "UTC")
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Nil(t, end)

	_, _, err = ParseDateRange("2024-04-02", "2024-04-01", "UTC")
	assert.Equal(t, ErrorKindValidation, KindOf(err))

	_, _, err = ParseDateRange("01/04/2024", "", "UTC")
	assert.Error(t, err)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func(int) error {
		calls++
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = WithRetry(context.Background(), 3, func(attempt int) error {
		calls++
		if attempt < 3 {
			return NewConflictError("busy", true)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestObtainLockWithoutRedis(t *testing.T) {
	release := ObtainLock(context.Background(), "lock:test", time.Second, "helper_test.go", "TestObtainLockWithoutRedis")
	release()
}
