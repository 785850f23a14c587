package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/Jorge523757/DIGITSOFT/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// pubSubPush receives events from a Pub/Sub push subscription. Malformed
// messages are acknowledged (204) so they are not redelivered forever; a
// processing failure answers 500 and Pub/Sub retries.
func pubSubPush(c *gin.Context) {
	logger := config.GetLogger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "pubsub.go", "pubSubPush", "io.ReadAll", nil, err)
		c.Status(http.StatusNoContent)
		return
	}
	m, err := workflow.DecodePushMessage(body)
	if err != nil {
		config.LogError(logger, "pubsub.go", "pubSubPush", "decode push message", string(body), err)
		c.Status(http.StatusNoContent)
		return
	}

	ctx := utils.SetCorrelationIdInContext(c.Request.Context(), m.CorrelationId)
	// best effort, the idempotency key is what keeps side effects single
	release := utils.ObtainLock(ctx, fmt.Sprintf("lock:event:%d", m.ID), 30*time.Second, "pubsub.go", "pubSubPush")
	defer release()

	if err := workflow.ProcessMessage(ctx, logger, m); err != nil {
		logger.WithFields(logrus.Fields{
			"field":          "pubSubPush",
			"event_type":     m.EventType,
			"reference_type": m.ReferenceType,
			"reference_id":   m.ReferenceId,
			"record_id":      m.ID,
			"correlation_id": m.CorrelationId,
		}).Error("pubsub processing failed: " + err.Error())
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}
