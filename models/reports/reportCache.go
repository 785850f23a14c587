package reports

import (
	"context"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/sirupsen/logrus"
)

const slowReportThreshold = 500 * time.Millisecond

func logSlowReport(ctx context.Context, name string, started time.Time, period Period) {
	d := time.Since(started)
	if d < slowReportThreshold {
		return
	}
	config.LogEntry(config.GetLogger(), ctx).WithFields(logrus.Fields{
		"report": name,
		"ms":     d.Milliseconds(),
		"from":   period.From,
		"to":     period.To,
	}).Warn("slow report")
}

func reportCacheKey(name string, period Period) string {
	return "Report:" + name + ":" + period.From + ":" + period.To
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	if !config.ReportCacheEnabled() {
		return false, nil
	}
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any) {
	if !config.ReportCacheEnabled() {
		return
	}
	if err := config.SetRedisObject(key, obj, config.ReportCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "reportCache.go", "cacheSet", "SetRedisObject", key, err)
	}
}
