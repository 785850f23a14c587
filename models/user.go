package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = utils.NewUnauthenticatedError("invalid username or password")
	ErrUserDisabled       = utils.NewUnauthenticatedError("user is disabled")
	ErrUserNotFound       = utils.NewNotFoundError("user not found")
)

type User struct {
	ID          int        `gorm:"primary_key" json:"id"`
	Username    string     `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email       *string    `gorm:"size:100;uniqueIndex" json:"email"`
	Password    string     `gorm:"size:255;not null" json:"-"`
	Name        string     `gorm:"size:150;not null" json:"name"`
	Role        UserRole   `gorm:"size:20;not null;default:'CUSTOMER';index" json:"role"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required,max=150"`
	Email    string   `json:"email" binding:"omitempty,email,max=100"`
	Password string   `json:"password" binding:"required"`
	Name     string   `json:"name" binding:"required,max=150"`
	Role     UserRole `json:"role" binding:"required"`
}

/*
caches:
	User:$username
	Token:$token -> username
	Tokens:$username -> set of tokens
*/

func userCacheKey(username string) string {
	return "User:" + username
}

type LoginInfo struct {
	Token      string   `json:"token"`
	UserId     int      `json:"user_id"`
	Username   string   `json:"username"`
	Name       string   `json:"name"`
	Role       UserRole `json:"role"`
	Home       string   `json:"home"`
	CustomerId *int     `json:"customer_id,omitempty"`
}

// HomeForRole is where the client lands after login.
func HomeForRole(role UserRole) string {
	if role.IsStaff() {
		return "/admin/dashboard"
	}
	return "/"
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	username = strings.TrimSpace(username)

	var user User
	err := db.WithContext(ctx).Where("username = ? OR email = ?", username, strings.ToLower(username)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	token := uuid.New().String()
	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, tokenLifespan()); err != nil {
		return nil, err
	}

	result := LoginInfo{
		Token:    token,
		UserId:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
		Home:     HomeForRole(user.Role),
	}
	if customer, err := GetCustomerByUserId(ctx, user.ID); err == nil {
		result.CustomerId = &customer.ID
	}

	now := timeNow()
	logCtx := utils.SetUsernameInContext(utils.SetUserIdInContext(ctx, user.ID), user.Username)
	err = db.WithContext(logCtx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&User{}).Where("id = ?", user.ID).UpdateColumn("last_login_at", &now).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeLogin, "auth", user.ID, "login")
	})
	if err != nil {
		config.LogError(config.GetLogger(), "user.go", "Login", "record login", user.Username, err)
	}
	return &result, nil
}

// ResolveSession maps a session token to its username.
func ResolveSession(token string) (string, bool, error) {
	return config.GetRedisValue("Token:" + token)
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, utils.NewUnauthenticatedError("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, ErrUserNotFound
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	if err := LogActivity(ctx, ActivityTypeLogout, "auth", userId, "logout"); err != nil {
		config.LogError(config.GetLogger(), "user.go", "Logout", "LogActivity", username, err)
	}
	return true, nil
}

func (user *User) DestroyAllSessions() error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:"+user.Username, userCacheKey(user.Username))
}

// GetUserByUsername serves the session user, cached until the user changes.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject(userCacheKey(username), &user)
	if err == nil && exists {
		return &user, nil
	}
	err = config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(userCacheKey(username), &user, tokenLifespan()); err != nil {
		config.LogError(config.GetLogger(), "user.go", "GetUserByUsername", "SetRedisObject", username, err)
	}
	return &user, nil
}

func validateNewCredentials(ctx context.Context, username string, email string, password string) error {
	if err := utils.ValidatePasswordStrength(password); err != nil {
		return err
	}
	if err := utils.ValidateUnique[User](ctx, "username", username, 0); err != nil {
		return err
	}
	if email != "" {
		if err := utils.ValidateUnique[User](ctx, "email", email, 0); err != nil {
			return err
		}
	}
	return nil
}

func buildUser(username string, email string, password string, name string, role UserRole) (*User, error) {
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		Username: html.EscapeString(username),
		Email:    utils.NilIfEmpty(email),
		Password: string(hashedPassword),
		Name:     trimmed(name),
		Role:     role,
		IsActive: true,
	}, nil
}

// CreateUser is used by administrators for staff, technician and supplier accounts.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Role.IsValid() {
		return nil, utils.NewValidationError("invalid role")
	}
	if input.Role == UserRoleSuperAdmin {
		if role, _ := utils.GetRoleFromContext(ctx); role != string(UserRoleSuperAdmin) {
			return nil, utils.NewPermissionError("only a super admin can create super admins")
		}
	}
	username := trimmed(input.Username)
	email := strings.ToLower(trimmed(input.Email))
	if err := validateNewCredentials(ctx, username, email, input.Password); err != nil {
		return nil, err
	}
	user, err := buildUser(username, email, input.Password, input.Name, input.Role)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "users", user.ID, "created user "+user.Username)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

type NewRegistration struct {
	Username       string `json:"username" binding:"required,max=150"`
	Email          string `json:"email" binding:"required,email,max=100"`
	Password       string `json:"password" binding:"required"`
	FirstName      string `json:"first_name" binding:"required,max=100"`
	LastName       string `json:"last_name" binding:"max=100"`
	DocumentType   string `json:"document_type" binding:"omitempty,max=10"`
	DocumentNumber string `json:"document_number" binding:"required,max=20"`
	Phone          string `json:"phone" binding:"max=20"`
	Address        string `json:"address"`
	City           string `json:"city" binding:"max=100"`
}

// Register creates a CUSTOMER login and its customer record together.
func Register(ctx context.Context, input *NewRegistration) (*User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	username := trimmed(input.Username)
	email := strings.ToLower(trimmed(input.Email))
	if err := validateNewCredentials(ctx, username, email, input.Password); err != nil {
		return nil, err
	}
	customerInput := NewCustomer{
		DocumentType:   input.DocumentType,
		DocumentNumber: input.DocumentNumber,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		CustomerType:   CustomerTypeNatural,
		Email:          email,
		Phone:          input.Phone,
		Address:        input.Address,
		City:           input.City,
	}
	if err := customerInput.validate(ctx, 0); err != nil {
		return nil, err
	}
	user, err := buildUser(username, email, input.Password, trimmed(input.FirstName+" "+input.LastName), UserRoleCustomer)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		customer := customerInput.toCustomer()
		customer.UserId = &user.ID
		if err := tx.Create(&customer).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx.WithContext(utils.SetUserIdInContext(tx.Statement.Context, user.ID)),
			ActivityTypeCreate, "users", user.ID, "registered customer "+user.Username)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

type UserFilter struct {
	Search string   `form:"search"`
	Role   UserRole `form:"role"`
	Pagination
}

func ListUsers(ctx context.Context, filter UserFilter) (*PaginatedList[User], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&User{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("username LIKE ? OR name LIKE ? OR email LIKE ?", like, like, like)
	}
	if filter.Role != "" {
		dbCtx = dbCtx.Where("role = ?", filter.Role)
	}
	return paginate[User](dbCtx.Order("username"), filter.Pagination)
}

// ToggleActiveUser enables or disables a login; disabling ends its sessions.
func ToggleActiveUser(ctx context.Context, id int, isActive bool) (*User, error) {
	if currentId, _ := utils.GetUserIdFromContext(ctx); currentId == id && !isActive {
		return nil, utils.NewValidationError("you cannot disable your own user")
	}
	user, err := ToggleActiveModel[User](ctx, "users", id, isActive)
	if err != nil {
		return nil, err
	}
	if !isActive {
		if err := user.DestroyAllSessions(); err != nil {
			config.LogError(config.GetLogger(), "user.go", "ToggleActiveUser", "DestroyAllSessions", user.Username, err)
		}
	} else if err := config.RemoveRedisKey(userCacheKey(user.Username)); err != nil {
		config.LogError(config.GetLogger(), "user.go", "ToggleActiveUser", "RemoveRedisKey", user.Username, err)
	}
	return user, nil
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, utils.NewUnauthenticatedError("login required")
	}
	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, utils.NewValidationError("old password is wrong")
	}
	if err := utils.ValidatePasswordStrength(newPassword); err != nil {
		return nil, err
	}
	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).UpdateColumn("password", string(hashedPassword)).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeUpdate, "users", user.ID, "changed password")
	})
	if err != nil {
		return nil, err
	}
	// destroying all session tokens
	if err := user.DestroyAllSessions(); err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureSuperAdmin creates or resets the bootstrap administrator.
func EnsureSuperAdmin(ctx context.Context, username string, email string, password string) (*User, error) {
	if err := utils.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	var user User
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("username = ?", username).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = User{
				Username: username,
				Email:    utils.NilIfEmpty(strings.ToLower(email)),
				Password: string(hashedPassword),
				Name:     "Administrator",
				Role:     UserRoleSuperAdmin,
				IsActive: true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return utils.ClassifyDBError(err)
			}
			return createActivityLog(tx, ActivityTypeCreate, "users", user.ID, "bootstrap super admin")
		}
		if err != nil {
			return err
		}
		return tx.Model(&user).Updates(map[string]interface{}{
			"password":  string(hashedPassword),
			"role":      UserRoleSuperAdmin,
			"is_active": true,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	_ = user.DestroyAllSessions()
	return &user, nil
}
