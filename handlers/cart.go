package handlers

import (
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/gin-gonic/gin"
)

// customerResolver picks the customer a cart route acts for: the session
// customer on /me routes, the path customer on staff POS routes.
type customerResolver func(c *gin.Context) (int, bool)

func pathCustomerId(c *gin.Context) (int, bool) {
	return pathId(c, "id")
}

type cartItemInput struct {
	ProductId int `json:"product_id" binding:"required,gt=0"`
	Quantity  int `json:"quantity" binding:"required,gt=0"`
}

// zero or less removes the line
type cartQuantityInput struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func registerCartRoutes(g *gin.RouterGroup, customerOf customerResolver) {
	g.GET("/cart", func(c *gin.Context) {
		customerId, ok := customerOf(c)
		if !ok {
			return
		}
		cart, err := models.GetActiveCart(c.Request.Context(), customerId)
		if err != nil {
			respondError(c, "getCart", err)
			return
		}
		c.JSON(http.StatusOK, cart)
	})

	g.POST("/cart/items", func(c *gin.Context) {
		customerId, ok := customerOf(c)
		if !ok {
			return
		}
		var input cartItemInput
		if !bindJSON(c, &input) {
			return
		}
		cart, err := models.AddCartItem(c.Request.Context(), customerId, input.ProductId, input.Quantity)
		if err != nil {
			respondError(c, "addCartItem", err)
			return
		}
		c.JSON(http.StatusOK, cart)
	})

	g.PUT("/cart/items/:productId", func(c *gin.Context) {
		customerId, ok := customerOf(c)
		if !ok {
			return
		}
		productId, ok := pathId(c, "productId")
		if !ok {
			return
		}
		var input cartQuantityInput
		if !bindJSON(c, &input) {
			return
		}
		cart, err := models.UpdateCartItemQuantity(c.Request.Context(), customerId, productId, *input.Quantity)
		if err != nil {
			respondError(c, "updateCartItem", err)
			return
		}
		c.JSON(http.StatusOK, cart)
	})

	g.DELETE("/cart/items/:productId", func(c *gin.Context) {
		customerId, ok := customerOf(c)
		if !ok {
			return
		}
		productId, ok := pathId(c, "productId")
		if !ok {
			return
		}
		cart, err := models.RemoveCartItem(c.Request.Context(), customerId, productId)
		if err != nil {
			respondError(c, "removeCartItem", err)
			return
		}
		c.JSON(http.StatusOK, cart)
	})

	g.POST("/cart/checkout", func(c *gin.Context) {
		customerId, ok := customerOf(c)
		if !ok {
			return
		}
		var input models.NewCheckout
		if !bindJSON(c, &input) {
			return
		}
		input.CustomerId = customerId
		if input.IdempotencyKey == "" {
			input.IdempotencyKey = c.GetHeader("Idempotency-Key")
		}
		sale, err := models.Checkout(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "checkout", err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	})
}

// my* routes list the session customer's own documents.

func mySales(c *gin.Context) {
	customerId, ok := sessionCustomerId(c)
	if !ok {
		return
	}
	var filter models.SaleFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.CustomerId = customerId
	list, err := models.ListSales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "mySales", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func myWarranties(c *gin.Context) {
	customerId, ok := sessionCustomerId(c)
	if !ok {
		return
	}
	var filter models.WarrantyFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.CustomerId = customerId
	list, err := models.ListWarranties(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "myWarranties", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func myInvoices(c *gin.Context) {
	customerId, ok := sessionCustomerId(c)
	if !ok {
		return
	}
	var filter models.InvoiceFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.CustomerId = customerId
	list, err := models.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "myInvoices", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func myInvoicePDF(c *gin.Context) {
	customerId, ok := sessionCustomerId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, "myInvoicePDF", err)
		return
	}
	if invoice.CustomerId != customerId {
		respondError(c, "myInvoicePDF", models.ErrInvoiceNotFound)
		return
	}
	writeInvoicePDF(c, invoice)
}
