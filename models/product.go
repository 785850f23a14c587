package models

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Code           string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name           string          `gorm:"size:200;not null;index" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Category       string          `gorm:"size:100;index" json:"category"`
	BrandId        *int            `gorm:"index" json:"brand_id"`
	Brand          *Brand          `gorm:"foreignKey:BrandId" json:"brand,omitempty"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"purchase_price"`
	SalePrice      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sale_price"`
	Stock          int             `gorm:"not null;default:0" json:"stock"`
	MinStock       int             `gorm:"not null;default:0" json:"min_stock"`
	MaxStock       int             `gorm:"not null;default:100" json:"max_stock"`
	WarrantyMonths int             `gorm:"not null;default:0" json:"warranty_months"`
	ImageUrl       string          `gorm:"size:255" json:"image_url"`
	ThumbnailUrl   string          `gorm:"size:255" json:"thumbnail_url"`
	IsActive       bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Code           string          `json:"code" binding:"max=50"`
	Name           string          `json:"name" binding:"required,max=200"`
	Description    string          `json:"description"`
	Category       string          `json:"category" binding:"max=100"`
	BrandId        *int            `json:"brand_id"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	Stock          int             `json:"stock" binding:"gte=0"`
	MinStock       int             `json:"min_stock" binding:"gte=0"`
	MaxStock       int             `json:"max_stock" binding:"gte=0"`
	WarrantyMonths *int            `json:"warranty_months" binding:"omitempty,gte=0,lte=120"`
}

// Margin is the markup over purchase price, in percent.
func (p Product) Margin() decimal.Decimal {
	return utils.MarginPercent(p.PurchasePrice, p.SalePrice)
}

func (p Product) NeedsRestock() bool {
	return p.Stock <= p.MinStock
}

func (p Product) PriceWithTax(rate decimal.Decimal) decimal.Decimal {
	return utils.PriceWithTax(p.SalePrice, rate)
}

func (input *NewProduct) validate(ctx context.Context, id int) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.PurchasePrice.IsNegative() || !input.SalePrice.IsPositive() {
		return utils.NewValidationError("prices must be positive")
	}
	if input.SalePrice.LessThan(input.PurchasePrice) {
		return utils.NewValidationError("sale price cannot be lower than purchase price")
	}
	if input.MaxStock > 0 && input.MinStock > input.MaxStock {
		return utils.NewValidationError("min stock cannot exceed max stock")
	}
	if input.Code != "" {
		if err := utils.ValidateUnique[Product](ctx, "code", trimmed(input.Code), id); err != nil {
			return err
		}
	}
	if input.BrandId != nil && *input.BrandId > 0 {
		if err := utils.ValidateResourceId[Brand](ctx, *input.BrandId); err != nil {
			return utils.NewValidationError("brand not found")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	product := Product{
		Code:           trimmed(input.Code),
		Name:           trimmed(input.Name),
		Description:    input.Description,
		Category:       trimmed(input.Category),
		BrandId:        input.BrandId,
		PurchasePrice:  input.PurchasePrice,
		SalePrice:      input.SalePrice,
		Stock:          input.Stock,
		MinStock:       input.MinStock,
		MaxStock:       input.MaxStock,
		WarrantyMonths: utils.DereferencePtr(input.WarrantyMonths, 12),
		IsActive:       true,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if product.Code == "" {
			code, err := NextDocumentNumber(tx, DocumentKindProduct, timeNow())
			if err != nil {
				return err
			}
			product.Code = code
		}
		if err := tx.Create(&product).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		if product.Stock > 0 {
			if err := recordStockMovement(tx, product.ID, product.Stock, product.Stock, StockReferenceTypeAdjustment, product.ID); err != nil {
				return err
			}
		}
		return createActivityLog(tx, ActivityTypeCreate, "products", product.ID, "created product "+product.Code)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct edits catalog data. Stock is not editable here; it moves only
// through sales, purchases and adjustments.
func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Code == "" {
		input.Code = product.Code
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Product{}).Where("id = ?", id).Updates(map[string]interface{}{
			"code":            trimmed(input.Code),
			"name":            trimmed(input.Name),
			"description":     input.Description,
			"category":        trimmed(input.Category),
			"brand_id":        input.BrandId,
			"purchase_price":  input.PurchasePrice,
			"sale_price":      input.SalePrice,
			"min_stock":       input.MinStock,
			"max_stock":       input.MaxStock,
			"warranty_months": utils.DereferencePtr(input.WarrantyMonths, product.WarrantyMonths),
		}).Error; err != nil {
			return utils.ClassifyDBError(err)
		}
		return createActivityLog(tx, ActivityTypeUpdate, "products", id, "updated product "+input.Code)
	})
	if err != nil {
		return nil, err
	}
	clearProductCache(id)
	return utils.FetchModel[Product](ctx, id, "Brand")
}

// DeleteProduct deactivates products referenced by sales, carts or purchases
// and removes the rest.
func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var referenced bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refErr error
		referenced, refErr = isReferenced(tx, id, map[string]string{
			"sale_details":     "product_id",
			"cart_items":       "product_id",
			"purchase_details": "product_id",
			"warranties":       "product_id",
		})
		if refErr != nil || referenced {
			return refErr
		}
		if err := tx.Where("product_id = ?", id).Delete(&StockMovement{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(product).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeDelete, "products", id, "deleted product "+product.Code)
	})
	if err != nil {
		return nil, err
	}
	if referenced {
		return ToggleActiveProduct(ctx, id, false)
	}
	clearProductCache(id)
	return product, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	return ToggleActiveModel[Product](ctx, "products", id, isActive)
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id, "Brand")
}

// GetCatalogProduct hides inactive products from the storefront.
func GetCatalogProduct(ctx context.Context, id int) (*Product, error) {
	product, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, utils.ErrorRecordNotFound
	}
	return product, nil
}

func clearProductCache(id int) {
	if err := utils.RemoveRedisItem[Product](id); err != nil {
		config.LogError(config.GetLogger(), "product.go", "clearProductCache", "RemoveRedisItem", id, err)
	}
}

type ProductFilter struct {
	Search     string `form:"search"`
	Category   string `form:"category"`
	BrandId    int    `form:"brand_id"`
	OnlyActive bool   `form:"only_active"`
	LowStock   bool   `form:"low_stock"`
	Pagination
}

func ListProducts(ctx context.Context, filter ProductFilter) (*PaginatedList[Product], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Product{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("name LIKE ? OR code LIKE ? OR description LIKE ?", like, like, like)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	if filter.BrandId > 0 {
		dbCtx = dbCtx.Where("brand_id = ?", filter.BrandId)
	}
	if filter.OnlyActive {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if filter.LowStock {
		dbCtx = dbCtx.Where("stock <= min_stock")
	}
	return paginate[Product](dbCtx.Order("name"), filter.Pagination, "Brand")
}

// ListLowStockProducts returns products at or below their minimum among ids;
// all products when ids is empty.
func ListLowStockProducts(ctx context.Context, ids []int) ([]*Product, error) {
	results := make([]*Product, 0)
	dbCtx := config.GetDB().WithContext(ctx).Where("is_active = ? AND stock <= min_stock", true)
	if len(ids) > 0 {
		dbCtx = dbCtx.Where("id IN ?", utils.UniqueSlice(ids))
	}
	if err := dbCtx.Order("stock").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UploadProductImage stores the image and a 200px thumbnail and links both to
// the product.
func UploadProductImage(ctx context.Context, id int, data []byte) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	contentType, ext, err := utils.DetectImageType(data)
	if err != nil {
		return nil, err
	}
	thumbnail, err := utils.CreateThumbnail(data)
	if err != nil {
		return nil, err
	}

	objectKey := path.Join("products", fmt.Sprintf("%s_%s%s", product.Code, utils.GenerateUniqueFilename(), ext))
	thumbnailKey := utils.ThumbnailObjectKey(objectKey)
	store := utils.GetObjectStore()
	if err := store.Put(ctx, objectKey, data, contentType); err != nil {
		return nil, err
	}
	if err := store.Put(ctx, thumbnailKey, thumbnail, "image/jpeg"); err != nil {
		_ = store.Delete(ctx, objectKey)
		return nil, err
	}

	oldImage, oldThumbnail := product.ImageUrl, product.ThumbnailUrl
	product.ImageUrl = utils.BuildObjectAccessURL(objectKey)
	product.ThumbnailUrl = utils.BuildObjectAccessURL(thumbnailKey)

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Product{}).Where("id = ?", id).Updates(map[string]interface{}{
			"image_url":     product.ImageUrl,
			"thumbnail_url": product.ThumbnailUrl,
		}).Error; err != nil {
			return err
		}
		return createActivityLog(tx, ActivityTypeUpdate, "products", id, "uploaded image for "+product.Code)
	})
	if err != nil {
		return nil, err
	}
	clearProductCache(id)

	for _, old := range []string{oldImage, oldThumbnail} {
		if key := utils.ExtractObjectKeyFromURL(old); key != "" {
			if err := store.Delete(ctx, key); err != nil {
				config.LogError(config.GetLogger(), "product.go", "UploadProductImage", "delete old image", key, err)
			}
		}
	}
	return product, nil
}
