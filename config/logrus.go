package config

import (
	"context"
	"os"
	"strings"

	"github.com/Jorge523757/DIGITSOFT/appctx"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

// LOG_LEVEL overrides the default of info; production logs JSON for the
// log collector, everything else logs text.
func init() {
	logg = logrus.New()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		logg.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logg.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logg.SetLevel(lvl)
	}
	logg.SetOutput(os.Stdout)
}

// LogEntry tags an entry with the request identity and the active trace
// carried by ctx.
func LogEntry(logger *logrus.Logger, ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}
	if ctx != nil {
		if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
			fields["correlation_id"] = v
		}
		if v, ok := appctx.GetString(ctx, appctx.ContextKeyUsername); ok && v != "" {
			fields["username"] = v
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	return logger.WithFields(fields)
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if logger == nil || err == nil {
		return
	}
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
