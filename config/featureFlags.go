package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// CheckoutRedisLockEnabled takes a best-effort redis lock per cart before the
// checkout transaction. Row locks remain the source of truth.
//
// Set via env:
// - CHECKOUT_REDIS_LOCK=false to disable
func CheckoutRedisLockEnabled() bool {
	return envBool("CHECKOUT_REDIS_LOCK", true)
}

// CheckoutMaxAttempts bounds retries of a checkout that hit a retryable conflict.
func CheckoutMaxAttempts() int {
	n := intFromEnv("CHECKOUT_MAX_ATTEMPTS", 3)
	if n < 1 {
		return 1
	}
	return n
}

// LowStockNotificationsEnabled emits INVENTORY notifications after a sale
// leaves a product at or below its minimum stock.
func LowStockNotificationsEnabled() bool {
	return envBool("LOW_STOCK_NOTIFICATIONS", true)
}

// CartAbandonAfter is the idle time after which the sweeper marks an ACTIVE
// cart as ABANDONED.
func CartAbandonAfter() time.Duration {
	hours, err := strconv.Atoi(strings.TrimSpace(os.Getenv("CART_ABANDON_AFTER_HOURS")))
	if err != nil || hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}

// OutboxDirectProcessing runs the in-process outbox consumer. Defaults to on
// when no broker is configured.
func OutboxDirectProcessing() bool {
	return envBool("OUTBOX_DIRECT_PROCESSING", GetEventBroker() == EventBrokerNone)
}

// ReportCacheEnabled caches sales statistics in redis for ReportCacheTTL.
func ReportCacheEnabled() bool {
	return envBool("ENABLE_REPORT_CACHE", false)
}

func ReportCacheTTL() time.Duration {
	n := intFromEnv("REPORT_CACHE_TTL_SECONDS", 120)
	if n <= 0 {
		n = 120
	}
	return time.Duration(n) * time.Second
}
