package handlers

import (
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/gin-gonic/gin"
)

func getConfiguration(c *gin.Context) {
	cfg, err := models.GetActiveConfiguration(c.Request.Context())
	if err != nil {
		respondError(c, "getConfiguration", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func saveConfiguration(c *gin.Context) {
	var input models.NewGeneralConfiguration
	if !bindJSON(c, &input) {
		return
	}
	cfg, err := models.SaveConfiguration(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "saveConfiguration", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func listOutbox(c *gin.Context) {
	var filter models.OutboxFilter
	if !bindQuery(c, &filter) {
		return
	}
	list, err := models.ListOutboxRecords(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listOutbox", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// reprocessOutbox puts a DEAD or FAILED record back in line for publishing
// and processing.
func reprocessOutbox(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	record, err := models.ReprocessOutbox(c.Request.Context(), id)
	if err != nil {
		respondError(c, "reprocessOutbox", err)
		return
	}
	c.JSON(http.StatusOK, record)
}
