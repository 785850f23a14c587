package models

import (
	"context"
	"errors"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTechnicianNotFound = utils.NewNotFoundError("technician not found")

type Technician struct {
	ID                int              `gorm:"primary_key" json:"id"`
	UserId            *int             `gorm:"uniqueIndex" json:"user_id"`
	DocumentNumber    string           `gorm:"size:20;not null;uniqueIndex" json:"document_number"`
	FirstName         string           `gorm:"size:100;not null" json:"first_name"`
	LastName          string           `gorm:"size:100;not null" json:"last_name"`
	Phone             string           `gorm:"size:20" json:"phone"`
	Email             string           `gorm:"size:100" json:"email"`
	Specialties       string           `gorm:"type:text" json:"specialties"`
	Level             TechnicianLevel  `gorm:"size:20;not null;default:'JUNIOR'" json:"level"`
	Status            TechnicianStatus `gorm:"size:20;not null;default:'AVAILABLE';index" json:"status"`
	ServicesCompleted int              `gorm:"not null;default:0" json:"services_completed"`
	Rating            decimal.Decimal  `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	IsActive          bool             `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTechnician struct {
	UserId         *int             `json:"user_id"`
	DocumentNumber string           `json:"document_number" binding:"required,max=20"`
	FirstName      string           `json:"first_name" binding:"required,max=100"`
	LastName       string           `json:"last_name" binding:"required,max=100"`
	Phone          string           `json:"phone" binding:"max=20"`
	Email          string           `json:"email" binding:"omitempty,email,max=100"`
	Specialties    string           `json:"specialties"`
	Level          TechnicianLevel  `json:"level"`
	Status         TechnicianStatus `json:"status"`
}

func (t Technician) FullName() string {
	return trimmed(t.FirstName + " " + t.LastName)
}

func (t Technician) IsAvailable() bool {
	return t.IsActive && t.Status == TechnicianStatusAvailable
}

func (input *NewTechnician) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Level == "" {
		input.Level = TechnicianLevelJunior
	}
	if input.Status == "" {
		input.Status = TechnicianStatusAvailable
	}
	if !input.Level.IsValid() || !input.Status.IsValid() {
		return utils.NewValidationError("invalid technician level or status")
	}
	if err := utils.ValidateContact(input.Email, input.Phone); err != nil {
		return err
	}
	if input.UserId != nil {
		if err := utils.ValidateResourceId[User](ctx, *input.UserId); err != nil {
			return utils.NewValidationError("user not found")
		}
		if err := utils.ValidateUnique[Technician](ctx, "user_id", *input.UserId, id); err != nil {
			return err
		}
	}
	return utils.ValidateUnique[Technician](ctx, "document_number", trimmed(input.DocumentNumber), id)
}

func CreateTechnician(ctx context.Context, input *NewTechnician) (*Technician, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	technician := Technician{
		UserId:         input.UserId,
		DocumentNumber: trimmed(input.DocumentNumber),
		FirstName:      trimmed(input.FirstName),
		LastName:       trimmed(input.LastName),
		Phone:          utils.FormatPhoneNumber(input.Phone),
		Email:          trimmed(input.Email),
		Specialties:    input.Specialties,
		Level:          input.Level,
		Status:         input.Status,
		IsActive:       true,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&technician).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "technicians", technician.ID, "created technician "+technician.FullName())
	})
	if err != nil {
		return nil, err
	}
	return &technician, nil
}

func UpdateTechnician(ctx context.Context, id int, input *NewTechnician) (*Technician, error) {
	if err := utils.ValidateResourceId[Technician](ctx, id); err != nil {
		return nil, ErrTechnicianNotFound
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Technician{}).Where("id = ?", id).Updates(map[string]interface{}{
			"user_id":         input.UserId,
			"document_number": trimmed(input.DocumentNumber),
			"first_name":      trimmed(input.FirstName),
			"last_name":       trimmed(input.LastName),
			"phone":           utils.FormatPhoneNumber(input.Phone),
			"email":           trimmed(input.Email),
			"specialties":     input.Specialties,
			"level":           input.Level,
			"status":          input.Status,
		}).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "technicians", id, "updated technician "+trimmed(input.FirstName))
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Technician](id); err != nil {
		config.LogError(config.GetLogger(), "technician.go", "UpdateTechnician", "RemoveRedisItem", id, err)
	}
	return utils.FetchModel[Technician](ctx, id)
}

func DeleteTechnician(ctx context.Context, id int) (*Technician, error) {
	technician, err := utils.FetchModel[Technician](ctx, id)
	if err != nil {
		return nil, ErrTechnicianNotFound
	}

	db := config.GetDB()
	var referenced bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refErr error
		referenced, refErr = isReferenced(tx, id, map[string]string{
			"service_orders": "technician_id",
			"purchases":      "requested_by_id",
		})
		if refErr != nil || referenced {
			return refErr
		}
		if err := tx.Delete(technician).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "technicians", id, "deleted technician "+technician.FullName())
	})
	if err != nil {
		return nil, err
	}
	if referenced {
		return ToggleActiveTechnician(ctx, id, false)
	}
	if err := utils.RemoveRedisItem[Technician](id); err != nil {
		config.LogError(config.GetLogger(), "technician.go", "DeleteTechnician", "RemoveRedisItem", id, err)
	}
	return technician, nil
}

func ToggleActiveTechnician(ctx context.Context, id int, isActive bool) (*Technician, error) {
	return ToggleActiveModel[Technician](ctx, "technicians", id, isActive)
}

func GetTechnician(ctx context.Context, id int) (*Technician, error) {
	technician, err := GetResource[Technician](ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrTechnicianNotFound
	}
	return technician, err
}

type TechnicianFilter struct {
	Search        string           `form:"search"`
	Status        TechnicianStatus `form:"status"`
	Level         TechnicianLevel  `form:"level"`
	OnlyAvailable bool             `form:"only_available"`
	Pagination
}

func ListTechnicians(ctx context.Context, filter TechnicianFilter) (*PaginatedList[Technician], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Technician{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("first_name LIKE ? OR last_name LIKE ? OR document_number LIKE ? OR specialties LIKE ?", like, like, like, like)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Level != "" {
		dbCtx = dbCtx.Where("level = ?", filter.Level)
	}
	if filter.OnlyAvailable {
		dbCtx = dbCtx.Where("is_active = ? AND status = ?", true, TechnicianStatusAvailable)
	}
	return paginate[Technician](dbCtx.Order("first_name, last_name"), filter.Pagination)
}
