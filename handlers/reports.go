package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/models/reports"
	"github.com/gin-gonic/gin"
)

type reportBuilder func(ctx context.Context, period reports.Period) (*reports.Table, error)

var reportBuilders = map[string]reportBuilder{
	"sales": reports.SalesReport,
	"inventory": func(ctx context.Context, _ reports.Period) (*reports.Table, error) {
		return reports.InventoryReport(ctx)
	},
	"customers": func(ctx context.Context, _ reports.Period) (*reports.Table, error) {
		return reports.CustomersReport(ctx)
	},
	"services":  reports.ServicesReport,
	"purchases": reports.PurchasesReport,
}

var reportContentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func registerReportRoutes(g *gin.RouterGroup) {
	for name, build := range reportBuilders {
		for ext := range reportContentTypes {
			g.GET("/"+name+"."+ext, exportReport(name, ext, build))
		}
	}
	g.GET("/stats", salesStatistics)
}

func exportReport(name string, ext string, build reportBuilder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var period reports.Period
		if !bindQuery(c, &period) {
			return
		}
		table, err := build(ctx, period)
		if err != nil {
			respondError(c, "exportReport", err)
			return
		}

		var buf bytes.Buffer
		if ext == "xlsx" {
			err = table.WriteXLSX(&buf)
		} else {
			err = table.WriteCSV(&buf)
		}
		if err != nil {
			respondError(c, "exportReport", err)
			return
		}

		description := "export " + name + "." + ext
		if period.From != "" || period.To != "" {
			description += " " + period.From + ".." + period.To
		}
		if err := models.LogActivity(ctx, models.ActivityTypeExport, "reports", 0, description); err != nil {
			config.LogError(config.GetLogger(), "reports.go", "exportReport", "LogActivity", name, err)
		}

		filename := table.Filename(ext, time.Now())
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, reportContentTypes[ext], buf.Bytes())
	}
}

func salesStatistics(c *gin.Context) {
	var period reports.Period
	if !bindQuery(c, &period) {
		return
	}
	stats, err := reports.GetSalesStatistics(c.Request.Context(), period)
	if err != nil {
		respondError(c, "salesStatistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
