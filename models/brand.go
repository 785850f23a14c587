package models

import (
	"context"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"gorm.io/gorm"
)

type Brand struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	LogoUrl     string    `gorm:"size:255" json:"logo_url"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBrand struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	LogoUrl     string `json:"logo_url" binding:"omitempty,url"`
}

func (input *NewBrand) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	return utils.ValidateUnique[Brand](ctx, "name", trimmed(input.Name), id)
}

func CreateBrand(ctx context.Context, input *NewBrand) (*Brand, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	brand := Brand{
		Name:        trimmed(input.Name),
		Description: input.Description,
		LogoUrl:     input.LogoUrl,
		IsActive:    true,
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&brand).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeCreate, "brands", brand.ID, "created brand "+brand.Name)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisList[Brand]("")
	return &brand, nil
}

func UpdateBrand(ctx context.Context, id int, input *NewBrand) (*Brand, error) {
	brand, err := utils.FetchModel[Brand](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(brand).Updates(map[string]interface{}{
			"name":        trimmed(input.Name),
			"description": input.Description,
			"logo_url":    input.LogoUrl,
		}).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "brands", id, "updated brand "+input.Name)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisBoth[Brand](id)
	return utils.FetchModel[Brand](ctx, id)
}

// DeleteBrand removes an unused brand, or deactivates one still referenced.
func DeleteBrand(ctx context.Context, id int) (*Brand, error) {
	brand, err := utils.FetchModel[Brand](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var referenced bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referenced, err = isReferenced(tx, id, map[string]string{"products": "brand_id", "equipment": "brand_id"})
		if err != nil {
			return err
		}
		if referenced {
			return nil
		}
		if err := tx.Delete(brand).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "brands", id, "deleted brand "+brand.Name)
	})
	if err != nil {
		return nil, err
	}
	if referenced {
		return ToggleActiveModel[Brand](ctx, "brands", id, false)
	}
	_ = utils.RemoveRedisBoth[Brand](id)
	return brand, nil
}

func GetBrand(ctx context.Context, id int) (*Brand, error) {
	return GetResource[Brand](ctx, id)
}

// ListActiveBrands is served from the cache for the public catalog.
func ListActiveBrands(ctx context.Context) ([]*Brand, error) {
	results, err := utils.RetrieveRedisList[Brand]("")
	if err == nil && results != nil {
		return results, nil
	}
	results = make([]*Brand, 0)
	if err := config.GetDB().WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	_ = utils.StoreRedisList[Brand](results, "")
	return results, nil
}

func ListBrands(ctx context.Context, search string, p Pagination) (*PaginatedList[Brand], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Brand{})
	if search != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+search+"%")
	}
	return paginate[Brand](dbCtx.Order("name"), p)
}
