package models_test

import (
	"errors"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCustomer(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := models.Register(staffContext(), &models.NewRegistration{
		Username:       username,
		Email:          username + "@example.com",
		Password:       "clave2024",
		FirstName:      "Andrés",
		LastName:       "Pérez",
		DocumentType:   "CC",
		DocumentNumber: "79" + username,
		City:           "Medellín",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesCustomerLogin(t *testing.T) {
	ctx := setupTestDB(t)
	user := registerCustomer(t, "andres")

	assert.Equal(t, models.UserRoleCustomer, user.Role)
	assert.Equal(t, "Andrés Pérez", user.Name)
	assert.NotEqual(t, "clave2024", user.Password)

	customer, err := models.GetCustomerByUserId(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CustomerTypeNatural, customer.CustomerType)
	assert.Equal(t, "andres@example.com", customer.Email)

	_, err = models.Register(ctx, &models.NewRegistration{
		Username:       "andres",
		Email:          "otro@example.com",
		Password:       "clave2024",
		FirstName:      "Otro",
		DocumentNumber: "123456",
	})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))
	assert.EqualValues(t, 1, countRows[models.User](t, ""))
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	ctx := setupTestDB(t)
	_, err := models.Register(ctx, &models.NewRegistration{
		Username:       "debil",
		Email:          "debil@example.com",
		Password:       "abc",
		FirstName:      "Débil",
		DocumentNumber: "555",
	})
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))
	assert.EqualValues(t, 0, countRows[models.Customer](t, ""))
}

func TestLogin(t *testing.T) {
	ctx := setupTestDB(t)
	user := registerCustomer(t, "maria")

	info, err := models.Login(ctx, "maria", "clave2024")
	require.NoError(t, err)
	assert.NotEmpty(t, info.Token)
	assert.Equal(t, user.ID, info.UserId)
	assert.Equal(t, models.HomeForRole(models.UserRoleCustomer), info.Home)
	require.NotNil(t, info.CustomerId)

	// email works as the login name too
	_, err = models.Login(ctx, "MARIA@example.com", "clave2024")
	require.NoError(t, err)

	_, err = models.Login(ctx, "maria", "incorrecta1")
	assert.True(t, errors.Is(err, models.ErrInvalidCredentials))
	_, err = models.Login(ctx, "nadie", "clave2024")
	assert.True(t, errors.Is(err, models.ErrInvalidCredentials))

	_, err = models.ToggleActiveUser(ctx, user.ID, false)
	require.NoError(t, err)
	_, err = models.Login(ctx, "maria", "clave2024")
	assert.True(t, errors.Is(err, models.ErrUserDisabled))

	assert.EqualValues(t, 2, countRows[models.ActivityLog](t, "activity_type = ?", models.ActivityTypeLogin))
}

func TestCreateUserRoleRules(t *testing.T) {
	ctx := setupTestDB(t)

	tech, err := models.CreateUser(ctx, &models.NewUser{
		Username: "tecnico1",
		Password: "soporte2024",
		Name:     "Técnico Uno",
		Role:     models.UserRoleTechnician,
	})
	require.NoError(t, err)
	assert.False(t, tech.Role.IsStaff())

	_, err = models.CreateUser(ctx, &models.NewUser{
		Username: "root2",
		Password: "superclave1",
		Name:     "Root",
		Role:     models.UserRoleSuperAdmin,
	})
	assert.Equal(t, utils.ErrorKindPermission, utils.KindOf(err))

	_, err = models.ToggleActiveUser(utils.SetUserIdInContext(ctx, tech.ID), tech.ID, false)
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	setupTestDB(t)
	user := registerCustomer(t, "camilo")
	ctx := utils.SetUsernameInContext(utils.SetUserIdInContext(staffContext(), user.ID), user.Username)

	_, err := models.ChangePassword(ctx, "equivocada1", "nueva2025")
	assert.Equal(t, utils.ErrorKindValidation, utils.KindOf(err))

	_, err = models.ChangePassword(ctx, "clave2024", "nueva2025")
	require.NoError(t, err)

	_, err = models.Login(ctx, "camilo", "clave2024")
	assert.True(t, errors.Is(err, models.ErrInvalidCredentials))
	_, err = models.Login(ctx, "camilo", "nueva2025")
	assert.NoError(t, err)
}

func TestEnsureSuperAdminIsIdempotent(t *testing.T) {
	ctx := setupTestDB(t)
	first, err := models.EnsureSuperAdmin(ctx, "root", "root@digitsoft.co", "inicio2024")
	require.NoError(t, err)
	second, err := models.EnsureSuperAdmin(ctx, "root", "root@digitsoft.co", "cambio2025")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.UserRoleSuperAdmin, second.Role)
	_, err = models.Login(ctx, "root", "cambio2025")
	assert.NoError(t, err)
}
