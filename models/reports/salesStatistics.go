package reports

import (
	"context"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const statisticsLimit = 10

type SalesTotals struct {
	SaleCount      int64           `json:"sale_count"`
	Revenue        decimal.Decimal `json:"revenue"`
	AverageSale    decimal.Decimal `json:"average_sale"`
	TotalDiscounts decimal.Decimal `json:"total_discounts"`
	TotalTaxes     decimal.Decimal `json:"total_taxes"`
}

type TopProduct struct {
	ProductId    int             `json:"product_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type FrequentCustomer struct {
	CustomerId    int             `json:"customer_id"`
	Name          string          `json:"name"`
	PurchaseCount int64           `json:"purchase_count"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
}

type SalesStatistics struct {
	Totals            SalesTotals        `json:"totals"`
	TopProducts       []TopProduct       `json:"top_products"`
	FrequentCustomers []FrequentCustomer `json:"frequent_customers"`
}

// GetSalesStatistics summarizes non-void sales in the period.
func GetSalesStatistics(ctx context.Context, period Period) (*SalesStatistics, error) {
	started := time.Now()
	defer logSlowReport(ctx, "sales_statistics", started, period)

	key := reportCacheKey("stats", period)
	var cached SalesStatistics
	if ok, err := cacheGet(key, &cached); err == nil && ok {
		return &cached, nil
	}

	db := config.GetDB().WithContext(ctx)
	sales, err := models.ApplyDateRange(ctx, db.Model(&models.Sale{}).Where("sales.status <> ?", models.SaleStatusVoid),
		"sales.sold_at", period.From, period.To)
	if err != nil {
		return nil, err
	}

	var totals struct {
		SaleCount      int64
		Revenue        decimal.NullDecimal
		TotalDiscounts decimal.NullDecimal
		TotalTaxes     decimal.NullDecimal
	}
	err = sales.Session(&gorm.Session{}).
		Select("COUNT(sales.id) AS sale_count, SUM(sales.total) AS revenue, SUM(sales.discount) AS total_discounts, SUM(sales.tax) AS total_taxes").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	result := SalesStatistics{
		Totals: SalesTotals{
			SaleCount:      totals.SaleCount,
			Revenue:        totals.Revenue.Decimal,
			TotalDiscounts: totals.TotalDiscounts.Decimal,
			TotalTaxes:     totals.TotalTaxes.Decimal,
		},
		TopProducts:       make([]TopProduct, 0),
		FrequentCustomers: make([]FrequentCustomer, 0),
	}
	if totals.SaleCount > 0 {
		result.Totals.AverageSale = result.Totals.Revenue.Div(decimal.NewFromInt(totals.SaleCount)).Round(2)
	}

	err = sales.Session(&gorm.Session{}).
		Select("products.id AS product_id, products.code, products.name, SUM(sale_details.quantity) AS quantity_sold, SUM(sale_details.subtotal) AS revenue").
		Joins("JOIN sale_details ON sale_details.sale_id = sales.id").
		Joins("JOIN products ON products.id = sale_details.product_id").
		Group("products.id, products.code, products.name").
		Order("quantity_sold DESC, products.id").
		Limit(statisticsLimit).
		Scan(&result.TopProducts).Error
	if err != nil {
		return nil, err
	}

	var customers []struct {
		CustomerId    int
		FirstName     string
		LastName      string
		BusinessName  string
		CustomerType  models.CustomerType
		PurchaseCount int64
		TotalSpent    decimal.Decimal
	}
	err = sales.Session(&gorm.Session{}).
		Select("customers.id AS customer_id, customers.first_name, customers.last_name, customers.business_name, customers.customer_type, COUNT(sales.id) AS purchase_count, SUM(sales.total) AS total_spent").
		Joins("JOIN customers ON customers.id = sales.customer_id").
		Group("customers.id, customers.first_name, customers.last_name, customers.business_name, customers.customer_type").
		Order("purchase_count DESC, total_spent DESC").
		Limit(statisticsLimit).
		Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		name := models.Customer{
			FirstName: c.FirstName, LastName: c.LastName, BusinessName: c.BusinessName, CustomerType: c.CustomerType,
		}.FullName()
		result.FrequentCustomers = append(result.FrequentCustomers, FrequentCustomer{
			CustomerId:    c.CustomerId,
			Name:          name,
			PurchaseCount: c.PurchaseCount,
			TotalSpent:    c.TotalSpent,
		})
	}

	cacheSet(key, &result)
	return &result, nil
}
