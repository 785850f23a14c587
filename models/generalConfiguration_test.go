package models_test

import (
	"testing"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaultsUntilSaved(t *testing.T) {
	ctx := setupTestDB(t)

	cfg, err := models.GetActiveConfiguration(ctx)
	require.NoError(t, err)
	assert.Zero(t, cfg.ID)
	assert.Equal(t, "19.00", cfg.TaxRate.StringFixed(2))
	assert.Equal(t, "COP", cfg.Currency)
}

func TestSaveConfigurationKeepsOneActiveRow(t *testing.T) {
	ctx := setupTestDB(t)

	first, err := models.SaveConfiguration(ctx, &models.NewGeneralConfiguration{CompanyName: "DigitSoft", TaxRate: dec("19")})
	require.NoError(t, err)
	second, err := models.SaveConfiguration(ctx, &models.NewGeneralConfiguration{CompanyName: "DigitSoft SAS", TaxRate: dec("5")})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	var active int64
	require.NoError(t, config.GetDB().Model(&models.GeneralConfiguration{}).Where("is_active = ?", true).Count(&active).Error)
	assert.EqualValues(t, 1, active)

	cfg, err := models.GetActiveConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, cfg.ID)
	assert.Equal(t, "5.00", cfg.TaxRate.StringFixed(2))
	assert.Equal(t, utils.DefaultTimezone, cfg.Timezone)
}

func TestSaveConfigurationValidates(t *testing.T) {
	ctx := setupTestDB(t)

	_, err := models.SaveConfiguration(ctx, &models.NewGeneralConfiguration{CompanyName: "DigitSoft", TaxRate: dec("120")})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	_, err = models.SaveConfiguration(ctx, &models.NewGeneralConfiguration{CompanyName: "DigitSoft", Timezone: "Mars/Olympus"})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	_, err = models.SaveConfiguration(ctx, &models.NewGeneralConfiguration{})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))
}
