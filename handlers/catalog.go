package handlers

import (
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/gin-gonic/gin"
)

func catalogProducts(c *gin.Context) {
	var filter models.ProductFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.OnlyActive = true
	filter.LowStock = false
	list, err := models.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "catalogProducts", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func catalogProduct(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	product, err := models.GetCatalogProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "catalogProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func catalogBrands(c *gin.Context) {
	brands, err := models.ListActiveBrands(c.Request.Context())
	if err != nil {
		respondError(c, "catalogBrands", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": brands})
}

func verifyInvoice(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	invoice, err := models.VerifyInvoiceToken(c.Request.Context(), token)
	if err != nil {
		respondError(c, "verifyInvoice", err)
		return
	}
	customerName := ""
	if invoice.Customer != nil {
		customerName = invoice.Customer.FullName()
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"number":     invoice.Number,
		"issued_at":  invoice.IssuedAt,
		"status":     invoice.Status,
		"total":      invoice.Total,
		"customer":   customerName,
		"invoice_id": invoice.ID,
	})
}
