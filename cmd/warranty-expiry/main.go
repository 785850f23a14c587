// warranty-expiry closes warranties past their end date and flags issued
// invoices past their due date as overdue.
package main

import (
	"context"
	"os"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	now := time.Now()

	expired, err := models.ExpireWarranties(ctx, now)
	if err != nil {
		config.LogError(logger, "warranty-expiry", "main", "ExpireWarranties", nil, err)
		os.Exit(1)
	}
	overdue, err := models.MarkOverdueInvoices(ctx, now)
	if err != nil {
		config.LogError(logger, "warranty-expiry", "main", "MarkOverdueInvoices", nil, err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"warranties_expired": expired,
		"invoices_overdue":   overdue,
	}).Info("expiry run finished")
}
