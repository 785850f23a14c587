// seed-admin creates or resets the super administrator and stores a default
// configuration when none has been saved yet.
//
// Usage:
//
//	ADMIN_USERNAME=admin ADMIN_EMAIL=admin@digitsoft.co ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/sirupsen/logrus"
)

const defaultAdminUsername = "admin"

func main() {
	logger := config.GetLogger()
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUsernameInContext(ctx, "seed-admin")
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	user, err := models.EnsureSuperAdmin(ctx, username, os.Getenv("ADMIN_EMAIL"), password)
	if err != nil {
		config.LogError(logger, "seed-admin", "main", "EnsureSuperAdmin", username, err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("super admin ready")

	cfg, err := models.GetActiveConfiguration(ctx)
	if err != nil {
		config.LogError(logger, "seed-admin", "main", "GetActiveConfiguration", nil, err)
		os.Exit(1)
	}
	if cfg.ID > 0 {
		return
	}
	defaults := models.DefaultConfiguration()
	if _, err := models.SaveConfiguration(ctx, &models.NewGeneralConfiguration{
		CompanyName: defaults.CompanyName,
		TaxRate:     defaults.TaxRate,
		Currency:    defaults.Currency,
		Timezone:    defaults.Timezone,
	}); err != nil {
		config.LogError(logger, "seed-admin", "main", "SaveConfiguration", nil, err)
		os.Exit(1)
	}
	logger.Info("default configuration saved")
}
