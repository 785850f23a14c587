package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Table is one exported report: a header row, data rows and trailing summary rows.
// Summary rows are written after one blank row.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
	Summary [][]string
}

// Filename is the download name, e.g. reporte_ventas_20240131.csv.
func (t *Table) Filename(ext string, now time.Time) string {
	return fmt.Sprintf("reporte_%s_%s.%s", t.Name, now.Format("20060102"), ext)
}

// WriteCSV writes the table with a UTF-8 BOM so spreadsheet tools detect the encoding.
func (t *Table) WriteCSV(w io.Writer) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Headers); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	if len(t.Summary) > 0 {
		if err := writer.Write([]string{}); err != nil {
			return err
		}
		if err := writer.WriteAll(t.Summary); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (t *Table) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"
	if t.Name != "" {
		sheetName = t.Name
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return err
		}
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rowNo := 1
	writeRow := func(values []string, style int) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
			if style != 0 {
				if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
					return err
				}
			}
		}
		rowNo++
		return nil
	}

	if err := writeRow(t.Headers, boldStyle); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writeRow(row, 0); err != nil {
			return err
		}
	}
	if len(t.Summary) > 0 {
		rowNo++
		for _, row := range t.Summary {
			if err := writeRow(row, boldStyle); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// formatMoney renders 1234.5 as $1,234.50.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	result := "$" + b.String() + "." + fracPart
	if negative {
		return "-" + result
	}
	return result
}

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006")
}

func formatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006 15:04")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// padRow returns a row of n cells with values placed at the given positions.
func padRow(n int, values map[int]string) []string {
	row := make([]string, n)
	for i, v := range values {
		if i < n {
			row[i] = v
		}
	}
	return row
}
