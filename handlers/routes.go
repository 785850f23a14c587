package handlers

import (
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/middlewares"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/gin-gonic/gin"
)

type none struct{}

// RegisterRoutes mounts the JSON API on r. The session middleware must run
// before these routes so the role checks can see the session user.
func RegisterRoutes(r gin.IRouter) {
	// public
	r.POST("/login", login)
	r.POST("/register", register)
	r.GET("/catalog/products", catalogProducts)
	r.GET("/catalog/products/:id", catalogProduct)
	r.GET("/catalog/brands", catalogBrands)
	r.GET("/verify/invoice", verifyInvoice)
	r.POST("/pubsub", pubSubPush)

	// any session
	session := r.Group("", middlewares.RequireSession())
	session.POST("/logout", logout)
	session.GET("/me", me)
	session.PUT("/me/password", changePassword)
	session.GET("/notifications", listNotifications)
	session.PUT("/notifications/:id/read", markNotificationRead)

	// customer self-service
	customer := r.Group("/me", middlewares.RequireRoles(models.UserRoleCustomer))
	registerCartRoutes(customer, sessionCustomerId)
	customer.GET("/sales", mySales)
	customer.GET("/warranties", myWarranties)
	customer.GET("/invoices", myInvoices)
	customer.GET("/invoices/:id/pdf", myInvoicePDF)

	// technicians follow their service orders
	workshop := r.Group("/service-orders", middlewares.RequireRoles(models.UserRoleSuperAdmin, models.UserRoleAdmin, models.UserRoleTechnician))
	resource[models.ServiceOrder, none, models.ServiceOrderFilter]{
		list: models.ListServiceOrders,
		get:  models.GetServiceOrder,
	}.register(workshop)
	workshop.PUT("/:id/status", updateServiceOrderStatus)

	staff := r.Group("", middlewares.RequireStaff())
	registerStaffRoutes(staff)
}

func registerStaffRoutes(staff *gin.RouterGroup) {
	customers := staff.Group("/customers")
	resource[models.Customer, models.NewCustomer, models.CustomerFilter]{
		list:   models.ListCustomers,
		get:    models.GetCustomer,
		create: models.CreateCustomer,
		update: models.UpdateCustomer,
		remove: models.DeleteCustomer,
		toggle: models.ToggleActiveCustomer,
	}.register(customers)
	// point of sale: staff fill and check out a customer's cart
	registerCartRoutes(customers.Group("/:id"), pathCustomerId)

	resource[models.Brand, models.NewBrand, brandFilter]{
		list:   listBrands,
		get:    models.GetBrand,
		create: models.CreateBrand,
		update: models.UpdateBrand,
		remove: models.DeleteBrand,
	}.register(staff.Group("/brands"))

	products := staff.Group("/products")
	products.GET("/low-stock", lowStockProducts)
	resource[models.Product, models.NewProduct, models.ProductFilter]{
		list:   models.ListProducts,
		get:    models.GetProduct,
		create: models.CreateProduct,
		update: models.UpdateProduct,
		remove: models.DeleteProduct,
		toggle: models.ToggleActiveProduct,
	}.register(products)
	products.POST("/:id/image", uploadProductImage)
	products.GET("/:id/movements", productMovements)
	products.POST("/:id/stock", adjustProductStock)

	resource[models.Supplier, models.NewSupplier, models.SupplierFilter]{
		list:   models.ListSuppliers,
		get:    models.GetSupplier,
		create: models.CreateSupplier,
		update: models.UpdateSupplier,
		remove: models.DeleteSupplier,
		toggle: models.ToggleActiveSupplier,
	}.register(staff.Group("/suppliers"))

	resource[models.Technician, models.NewTechnician, models.TechnicianFilter]{
		list:   models.ListTechnicians,
		get:    models.GetTechnician,
		create: models.CreateTechnician,
		update: models.UpdateTechnician,
		remove: models.DeleteTechnician,
		toggle: models.ToggleActiveTechnician,
	}.register(staff.Group("/technicians"))

	resource[models.Equipment, models.NewEquipment, models.EquipmentFilter]{
		list:   models.ListEquipment,
		get:    models.GetEquipment,
		create: models.CreateEquipment,
		update: models.UpdateEquipment,
		remove: models.DeleteEquipment,
		toggle: models.ToggleActiveEquipment,
	}.register(staff.Group("/equipment"))

	resource[models.ServiceCatalogEntry, models.NewServiceCatalogEntry, models.ServiceCatalogFilter]{
		list:   models.ListServiceCatalog,
		get:    models.GetServiceCatalogEntry,
		create: models.CreateServiceCatalogEntry,
		update: models.UpdateServiceCatalogEntry,
		remove: models.DeleteServiceCatalogEntry,
		toggle: models.ToggleActiveServiceCatalogEntry,
	}.register(staff.Group("/service-catalog"))

	serviceOrders := staff.Group("/service-orders")
	resource[models.ServiceOrder, models.NewServiceOrder, none]{
		create: models.CreateServiceOrder,
		update: models.UpdateServiceOrder,
		remove: models.DeleteServiceOrder,
	}.register(serviceOrders)
	serviceOrders.POST("/:id/invoice", invoiceServiceOrder)

	purchases := staff.Group("/purchases")
	resource[models.Purchase, models.NewPurchase, models.PurchaseFilter]{
		list:   models.ListPurchases,
		get:    models.GetPurchase,
		create: models.CreatePurchase,
		update: models.UpdatePurchase,
		remove: models.DeletePurchase,
	}.register(purchases)
	purchases.PUT("/:id/status", updatePurchaseStatus)
	purchases.POST("/:id/receive", receivePurchase)

	sales := staff.Group("/sales")
	resource[models.Sale, none, models.SaleFilter]{
		list: models.ListSales,
		get:  models.GetSale,
	}.register(sales)
	sales.POST("/:id/void", voidSale)

	invoices := staff.Group("/invoices")
	resource[models.Invoice, none, models.InvoiceFilter]{
		list: models.ListInvoices,
		get:  models.GetInvoice,
	}.register(invoices)
	invoices.PUT("/:id/status", updateInvoiceStatus)
	invoices.GET("/:id/pdf", invoicePDF)

	warranties := staff.Group("/warranties")
	resource[models.Warranty, none, models.WarrantyFilter]{
		list: models.ListWarranties,
		get:  models.GetWarranty,
	}.register(warranties)
	warranties.PUT("/:id/status", updateWarrantyStatus)

	carts := staff.Group("/carts")
	resource[models.Cart, none, models.CartFilter]{
		list: models.ListCarts,
	}.register(carts)
	carts.GET("/abandoned", abandonedCarts)
	carts.GET("/:id", func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		cart, err := models.GetCart(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getCart", err)
			return
		}
		c.JSON(http.StatusOK, cart)
	})
	carts.PUT("/:id/status", updateCartStatus)

	resource[models.ActivityLog, none, models.ActivityLogFilter]{
		list: models.ListActivityLogs,
	}.register(staff.Group("/activity-logs"))

	staff.GET("/configuration", getConfiguration)
	staff.PUT("/configuration", saveConfiguration)

	resource[models.User, models.NewUser, models.UserFilter]{
		list:   models.ListUsers,
		get:    models.GetUser,
		create: models.CreateUser,
		toggle: models.ToggleActiveUser,
	}.register(staff.Group("/users"))

	staff.GET("/outbox", listOutbox)
	staff.POST("/outbox/:id/reprocess", reprocessOutbox)

	registerReportRoutes(staff.Group("/reports"))
}
