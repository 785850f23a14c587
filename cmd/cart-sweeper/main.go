// cart-sweeper expires ACTIVE carts past their expiry and marks idle carts
// as ABANDONED. Meant to run from cron; CART_ABANDON_AFTER_HOURS tunes the idle window.
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

	abandonAfter := config.CartAbandonAfter()
	result, err := models.SweepCarts(ctx, time.Now(), abandonAfter)
	if err != nil {
		config.LogError(logger, "cart-sweeper", "main", "SweepCarts", abandonAfter.String(), err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"expired":       result.Expired,
		"abandoned":     result.Abandoned,
		"abandon_after": abandonAfter.String(),
	}).Info("cart sweep finished")
}
