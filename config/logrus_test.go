package config

import (
	"bytes"
	"context"
	"testing"

	"github.com/Jorge523757/DIGITSOFT/appctx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogEntryCarriesRequestIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx := appctx.Set(context.Background(), appctx.ContextKeyCorrelationId, "cid-42")
	ctx = appctx.Set(ctx, appctx.ContextKeyUsername, "caja1")
	LogEntry(logger, ctx).Info("hello")

	out := buf.String()
	assert.Contains(t, out, `"correlation_id":"cid-42"`)
	assert.Contains(t, out, `"username":"caja1"`)
	assert.NotContains(t, out, "trace_id")
}

func TestLogErrorSkipsNilError(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	LogError(logger, "m", "f", "c", nil, nil)
	assert.Empty(t, buf.String())
}
