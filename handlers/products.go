package handlers

import (
	"io"
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/gin-gonic/gin"
)

const maxImageBytes = 5 << 20

func uploadProductImage(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > maxImageBytes {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "image exceeds 5 MB"})
		return
	}
	src, err := file.Open()
	if err != nil {
		respondError(c, "uploadProductImage", err)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
	if err != nil {
		respondError(c, "uploadProductImage", err)
		return
	}

	product, err := models.UploadProductImage(c.Request.Context(), id, data)
	if err != nil {
		respondError(c, "uploadProductImage", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func productMovements(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var filter models.StockMovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	list, err := models.ListStockMovements(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, "productMovements", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func adjustProductStock(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewStockAdjustment
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.AdjustStock(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "adjustProductStock", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type lowStockResponse struct {
	Items []*models.Product `json:"items"`
}

func lowStockProducts(c *gin.Context) {
	products, err := models.ListLowStockProducts(c.Request.Context(), nil)
	if err != nil {
		respondError(c, "lowStockProducts", err)
		return
	}
	c.JSON(http.StatusOK, lowStockResponse{Items: products})
}
