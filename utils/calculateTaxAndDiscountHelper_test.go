package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateTaxAmount(t *testing.T) {
	assert.True(t, dec("38").Equal(CalculateTaxAmount(dec("200"), dec("19"))))
	assert.True(t, dec("1.90").Equal(CalculateTaxAmount(dec("9.99"), dec("19"))))
	assert.True(t, decimal.Zero.Equal(CalculateTaxAmount(dec("100"), dec("0"))))
}

func TestCalculateTaxInclusive(t *testing.T) {
	assert.True(t, dec("19").Equal(CalculateTaxInclusive(dec("119"), dec("19"))))
}

func TestCalculateDiscountAmount(t *testing.T) {
	assert.True(t, dec("20").Equal(CalculateDiscountAmount(dec("200"), dec("10"), "P")))
	assert.True(t, dec("15").Equal(CalculateDiscountAmount(dec("200"), dec("15"), "A")))
	assert.True(t, decimal.Zero.Equal(CalculateDiscountAmount(dec("200"), dec("-1"), "A")))
}

func TestMarginAndPriceWithTax(t *testing.T) {
	assert.True(t, dec("25").Equal(MarginPercent(dec("80"), dec("100"))))
	assert.True(t, decimal.Zero.Equal(MarginPercent(decimal.Zero, dec("100"))))
	assert.True(t, dec("119").Equal(PriceWithTax(dec("100"), dec("19"))))
}
