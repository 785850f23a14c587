package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/shopspring/decimal"
)

// Period bounds a report by local calendar dates (YYYY-MM-DD, both inclusive).
type Period struct {
	From string `form:"fecha_inicio"`
	To   string `form:"fecha_fin"`
}

var statusLabels = map[string]string{
	"PENDING":            "Pendiente",
	"PAID":               "Pagada",
	"PARTIAL":            "Pago Parcial",
	"VOID":               "Anulada",
	"CREDIT":             "Crédito",
	"IN_PROGRESS":        "En Proceso",
	"PAUSED":             "Pausada",
	"COMPLETED":          "Completada",
	"CANCELLED":          "Cancelada",
	"INVOICED":           "Facturada",
	"REQUESTED":          "Solicitada",
	"QUOTED":             "Cotizada",
	"APPROVED":           "Aprobada",
	"ORDERED":            "Ordenada",
	"PARTIALLY_RECEIVED": "Recibida Parcial",
	"RECEIVED":           "Recibida",
	"CASH":               "Efectivo",
	"DEBIT_CARD":         "Tarjeta Débito",
	"CREDIT_CARD":        "Tarjeta Crédito",
	"TRANSFER":           "Transferencia",
	"MIXED":              "Mixto",
	"LOW":                "Baja",
	"MEDIUM":             "Media",
	"HIGH":               "Alta",
	"URGENT":             "Urgente",
	"NATURAL":            "Persona Natural",
	"LEGAL":              "Persona Jurídica",
}

func label(value string) string {
	if l, ok := statusLabels[value]; ok {
		return l
	}
	return orNA(value)
}

func activeLabel(isActive bool) string {
	if isActive {
		return "Activo"
	}
	return "Inactivo"
}

func reportLocation(ctx context.Context) (*time.Location, error) {
	cfg, err := models.GetActiveConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	return utils.LoadLocation(cfg.Timezone), nil
}

func SalesReport(ctx context.Context, period Period) (*Table, error) {
	loc, err := reportLocation(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&models.Sale{}).Preload("Customer").Preload("Seller")
	dbCtx, err = models.ApplyDateRange(ctx, dbCtx, "sold_at", period.From, period.To)
	if err != nil {
		return nil, err
	}
	var sales []models.Sale
	if err := dbCtx.Order("sold_at, id").Find(&sales).Error; err != nil {
		return nil, err
	}

	t := &Table{
		Name: "ventas",
		Headers: []string{
			"Número Venta", "Fecha", "Cliente", "Vendedor", "Subtotal",
			"Descuento", "Impuestos", "Total", "Método Pago", "Estado",
		},
	}
	total := decimal.Zero
	for _, s := range sales {
		customer, seller := "N/A", "N/A"
		if s.Customer != nil {
			customer = s.Customer.FullName()
		}
		if s.Seller != nil {
			seller = s.Seller.Name
		}
		t.Rows = append(t.Rows, []string{
			s.Number,
			formatDateTime(s.SoldAt, loc),
			customer,
			seller,
			formatMoney(s.Subtotal),
			formatMoney(s.Discount),
			formatMoney(s.Tax),
			formatMoney(s.Total),
			label(string(s.PaymentMethod)),
			label(string(s.Status)),
		})
		total = total.Add(s.Total)
	}
	t.Summary = [][]string{padRow(len(t.Headers), map[int]string{0: "TOTAL GENERAL", 7: formatMoney(total)})}
	return t, nil
}

func InventoryReport(ctx context.Context) (*Table, error) {
	var products []models.Product
	err := config.GetDB().WithContext(ctx).Preload("Brand").
		Where("is_active = ?", true).Order("code").Find(&products).Error
	if err != nil {
		return nil, err
	}

	t := &Table{
		Name: "inventario",
		Headers: []string{
			"Código", "Nombre", "Categoría", "Marca", "Stock Actual", "Stock Mínimo",
			"Stock Máximo", "Precio Compra", "Precio Venta", "Valor Inventario", "Estado",
		},
	}
	totalValue := decimal.Zero
	lowStock := 0
	for _, p := range products {
		value := p.SalePrice.Mul(decimal.NewFromInt(int64(p.Stock)))
		totalValue = totalValue.Add(value)
		if p.NeedsRestock() {
			lowStock++
		}
		brand := "N/A"
		if p.Brand != nil {
			brand = p.Brand.Name
		}
		t.Rows = append(t.Rows, []string{
			p.Code,
			p.Name,
			orNA(p.Category),
			brand,
			fmt.Sprint(p.Stock),
			fmt.Sprint(p.MinStock),
			fmt.Sprint(p.MaxStock),
			formatMoney(p.PurchasePrice),
			formatMoney(p.SalePrice),
			formatMoney(value),
			activeLabel(p.IsActive),
		})
	}
	t.Summary = [][]string{
		{"RESUMEN DEL INVENTARIO"},
		{"Total de Productos:", fmt.Sprint(len(products))},
		{"Productos con Stock Bajo:", fmt.Sprint(lowStock)},
		{"Valor Total del Inventario:", formatMoney(totalValue)},
	}
	return t, nil
}

func CustomersReport(ctx context.Context) (*Table, error) {
	loc, err := reportLocation(ctx)
	if err != nil {
		return nil, err
	}
	var customers []models.Customer
	err = config.GetDB().WithContext(ctx).Where("is_active = ?", true).
		Order("first_name, business_name, id").Find(&customers).Error
	if err != nil {
		return nil, err
	}

	t := &Table{
		Name: "clientes",
		Headers: []string{
			"Tipo Documento", "Número Documento", "Nombre Completo", "Tipo Cliente",
			"Teléfono", "Email", "Ciudad", "Fecha Registro", "Estado",
		},
	}
	natural, legal := 0, 0
	for _, c := range customers {
		if c.CustomerType == models.CustomerTypeLegal {
			legal++
		} else {
			natural++
		}
		t.Rows = append(t.Rows, []string{
			c.DocumentType,
			c.DocumentNumber,
			c.FullName(),
			label(string(c.CustomerType)),
			c.Phone,
			c.Email,
			c.City,
			formatDate(c.CreatedAt, loc),
			activeLabel(c.IsActive),
		})
	}
	t.Summary = [][]string{
		{"TOTAL DE CLIENTES:", fmt.Sprint(len(customers))},
		{"Personas Naturales:", fmt.Sprint(natural)},
		{"Personas Jurídicas:", fmt.Sprint(legal)},
	}
	return t, nil
}

func ServicesReport(ctx context.Context, period Period) (*Table, error) {
	loc, err := reportLocation(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&models.ServiceOrder{}).
		Preload("Customer").Preload("Equipment").Preload("Technician")
	dbCtx, err = models.ApplyDateRange(ctx, dbCtx, "received_at", period.From, period.To)
	if err != nil {
		return nil, err
	}
	var orders []models.ServiceOrder
	if err := dbCtx.Order("received_at, id").Find(&orders).Error; err != nil {
		return nil, err
	}

	t := &Table{
		Name: "servicios",
		Headers: []string{
			"Número Orden", "Cliente", "Equipo", "Técnico", "Fecha Ingreso", "Fecha Entrega",
			"Estado", "Prioridad", "Costo Mano Obra", "Costo Repuestos", "Total",
		},
	}
	labor, parts, total := decimal.Zero, decimal.Zero, decimal.Zero
	for _, o := range orders {
		customer, equipment, technician, delivered := "N/A", "N/A", "Sin asignar", "Pendiente"
		if o.Customer != nil {
			customer = o.Customer.FullName()
		}
		if o.Equipment != nil {
			equipment = o.Equipment.Label()
		}
		if o.Technician != nil {
			technician = o.Technician.FullName()
		}
		if o.DeliveredAt != nil {
			delivered = formatDate(*o.DeliveredAt, loc)
		}
		t.Rows = append(t.Rows, []string{
			o.Number,
			customer,
			equipment,
			technician,
			formatDate(o.ReceivedAt, loc),
			delivered,
			label(string(o.Status)),
			label(string(o.Priority)),
			formatMoney(o.LaborCost),
			formatMoney(o.PartsCost),
			formatMoney(o.Total),
		})
		labor = labor.Add(o.LaborCost)
		parts = parts.Add(o.PartsCost)
		total = total.Add(o.Total)
	}
	t.Summary = [][]string{padRow(len(t.Headers), map[int]string{
		0: "TOTALES", 8: formatMoney(labor), 9: formatMoney(parts), 10: formatMoney(total),
	})}
	return t, nil
}

func PurchasesReport(ctx context.Context, period Period) (*Table, error) {
	loc, err := reportLocation(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&models.Purchase{}).Preload("Supplier")
	dbCtx, err = models.ApplyDateRange(ctx, dbCtx, "requested_at", period.From, period.To)
	if err != nil {
		return nil, err
	}
	var purchases []models.Purchase
	if err := dbCtx.Order("requested_at, id").Find(&purchases).Error; err != nil {
		return nil, err
	}

	t := &Table{
		Name: "compras",
		Headers: []string{
			"Número Compra", "Proveedor", "Fecha Solicitud", "Estado", "Subtotal",
			"Descuento", "Impuestos", "Costos Envío", "Total", "Método Pago",
		},
	}
	total := decimal.Zero
	for _, p := range purchases {
		supplier := "N/A"
		if p.Supplier != nil {
			supplier = p.Supplier.BusinessName
		}
		t.Rows = append(t.Rows, []string{
			p.Number,
			supplier,
			formatDate(p.RequestedAt, loc),
			label(string(p.Status)),
			formatMoney(p.Subtotal),
			formatMoney(p.Discount),
			formatMoney(p.Tax),
			formatMoney(p.ShippingCost),
			formatMoney(p.Total),
			label(string(p.PaymentMethod)),
		})
		total = total.Add(p.Total)
	}
	t.Summary = [][]string{padRow(len(t.Headers), map[int]string{0: "TOTAL COMPRAS", 8: formatMoney(total)})}
	return t, nil
}
