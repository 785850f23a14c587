package utils

import (
	"github.com/shopspring/decimal"
)

var (
	decimalOneHundred = decimal.NewFromInt(100)
	DefaultTaxRate    = decimal.NewFromInt(19)
)

// RoundMoney rounds half away from zero to 2 places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateTaxAmount returns amount × rate/100 rounded to 2 places. rate is a
// percentage.
func CalculateTaxAmount(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() || amount.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(amount.Mul(rate).Div(decimalOneHundred))
}

// CalculateTaxInclusive extracts the tax portion of an amount that already
// includes it.
func CalculateTaxInclusive(totalAmount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(totalAmount.Mul(rate).Div(rate.Add(decimalOneHundred)))
}

func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {
	if !discount.IsPositive() {
		return decimal.Zero
	}
	if discountType == "P" {
		return subTotal.Mul(discount).DivRound(decimalOneHundred, 4)
	}
	return discount
}

// PriceWithTax is the consumer price of a net price.
func PriceWithTax(price decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(price.Add(price.Mul(rate).Div(decimalOneHundred)))
}

// MarginPercent is (sale-purchase)/purchase × 100, zero when purchase is zero.
func MarginPercent(purchase decimal.Decimal, sale decimal.Decimal) decimal.Decimal {
	if purchase.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(sale.Sub(purchase).Div(purchase).Mul(decimalOneHundred))
}
