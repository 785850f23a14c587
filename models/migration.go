package models

import (
	"log"

	"github.com/Jorge523757/DIGITSOFT/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ActivityLog{},
		&Brand{},
		&Cart{}, &CartItem{}, &CheckoutIdempotencyKey{}, &Customer{},
		&DocumentSequence{},
		&Equipment{},
		&GeneralConfiguration{},
		&IdempotencyKey{}, &Invoice{},
		&Notification{},
		&OutboxRecord{},
		&Product{}, &Purchase{}, &PurchaseDetail{},
		&Sale{}, &SaleDetail{}, &ServiceCatalogEntry{}, &ServiceOrder{}, &StockMovement{}, &Supplier{},
		&Technician{},
		&User{},
		&Warranty{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
