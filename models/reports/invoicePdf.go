package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// InvoiceVerificationURL is the link encoded in the invoice QR code.
func InvoiceVerificationURL(token string) string {
	base := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	return base + "/verify/invoice?token=" + url.QueryEscape(token)
}

// WriteInvoicePDF renders the invoice with its lines and a QR code that
// points at the verification endpoint.
func WriteInvoicePDF(ctx context.Context, invoice *models.Invoice, w io.Writer) error {
	cfg, err := models.GetActiveConfiguration(ctx)
	if err != nil {
		return err
	}
	loc := utils.LoadLocation(cfg.Timezone)

	token, err := models.InvoiceVerificationToken(invoice)
	if err != nil {
		return err
	}
	qrPNG, err := qrcode.Encode(InvoiceVerificationURL(token), qrcode.Medium, 256)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(120, 8, tr(cfg.CompanyName))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		"NIT " + cfg.CompanyTaxId,
		cfg.CompanyAddress,
		strings.TrimSpace(cfg.CompanyPhone + " " + cfg.CompanyEmail),
		cfg.InvoiceResolution,
	} {
		if strings.TrimSpace(line) == "" || line == "NIT " {
			continue
		}
		pdf.Cell(120, 5, tr(line))
		pdf.Ln(5)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 10, 35, 35, false, imageOpts, 0, "")

	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, tr("Factura de venta "+invoice.Number))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	customer := "N/A"
	if invoice.Customer != nil {
		customer = invoice.Customer.FullName() + " - " + invoice.Customer.DocumentNumber
	}
	pdf.Cell(0, 6, tr("Cliente: "+customer))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Fecha: %s   Vence: %s   Estado: %s",
		formatDate(invoice.IssuedAt, loc), formatDate(invoice.DueAt, loc), label(string(invoice.Status)))))
	pdf.Ln(10)

	widths := []float64{25, 85, 20, 30, 30}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Código", "Descripción", "Cant.", "Precio", "Subtotal"} {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, row := range invoiceLines(invoice) {
		pdf.CellFormat(widths[0], 6, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(row[1]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, row[2], "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, row[3], "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, row[4], "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	for _, total := range [][2]string{
		{"Subtotal", formatMoney(invoice.Subtotal)},
		{"Descuento", formatMoney(invoice.Discount)},
		{"Impuestos", formatMoney(invoice.Tax)},
		{"Total", formatMoney(invoice.Total)},
	} {
		pdf.CellFormat(160, 6, tr(total[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, total[1], "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

// invoiceLines lists sale details, or one line for a service order invoice.
func invoiceLines(invoice *models.Invoice) [][]string {
	var rows [][]string
	if invoice.Sale != nil {
		for _, d := range invoice.Sale.Details {
			code, name := "", fmt.Sprintf("Producto %d", d.ProductId)
			if d.Product != nil {
				code, name = d.Product.Code, d.Product.Name
			}
			rows = append(rows, []string{
				code, name, fmt.Sprint(d.Quantity), formatMoney(d.UnitPrice), formatMoney(d.Subtotal),
			})
		}
	}
	if invoice.ServiceOrder != nil {
		o := invoice.ServiceOrder
		rows = append(rows,
			[]string{o.Number, "Mano de obra", "1", formatMoney(o.LaborCost), formatMoney(o.LaborCost)},
			[]string{o.Number, "Repuestos", "1", formatMoney(o.PartsCost), formatMoney(o.PartsCost)},
		)
	}
	return rows
}
