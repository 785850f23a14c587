package handlers

import (
	"bytes"
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/models/reports"
	"github.com/gin-gonic/gin"
)

func voidSale(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.VoidSaleInput
	if !bindJSON(c, &input) {
		return
	}
	sale, err := models.VoidSale(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "voidSale", err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func updateInvoiceStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.InvoiceStatusInput
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.UpdateInvoiceStatus(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateInvoiceStatus", err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func invoicePDF(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, "invoicePDF", err)
		return
	}
	writeInvoicePDF(c, invoice)
}

// writeInvoicePDF renders into memory first so a failure still gets a JSON error.
func writeInvoicePDF(c *gin.Context, invoice *models.Invoice) {
	var buf bytes.Buffer
	if err := reports.WriteInvoicePDF(c.Request.Context(), invoice, &buf); err != nil {
		respondError(c, "writeInvoicePDF", err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="factura_`+invoice.Number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func updateWarrantyStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.WarrantyStatusInput
	if !bindJSON(c, &input) {
		return
	}
	warranty, err := models.UpdateWarrantyStatus(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateWarrantyStatus", err)
		return
	}
	c.JSON(http.StatusOK, warranty)
}

func abandonedCarts(c *gin.Context) {
	var p models.Pagination
	if !bindQuery(c, &p) {
		return
	}
	list, err := models.ListAbandonedCarts(c.Request.Context(), p)
	if err != nil {
		respondError(c, "abandonedCarts", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func updateCartStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.CartStatusInput
	if !bindJSON(c, &input) {
		return
	}
	cart, err := models.UpdateCartStatus(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateCartStatus", err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func updatePurchaseStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.PurchaseStatusInput
	if !bindJSON(c, &input) {
		return
	}
	purchase, err := models.UpdatePurchaseStatus(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updatePurchaseStatus", err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

func receivePurchase(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	purchase, err := models.ReceivePurchase(c.Request.Context(), id)
	if err != nil {
		respondError(c, "receivePurchase", err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

func updateServiceOrderStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.ServiceOrderStatusInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.UpdateServiceOrderStatus(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateServiceOrderStatus", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func invoiceServiceOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.InvoiceServiceOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, "invoiceServiceOrder", err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}
