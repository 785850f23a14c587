package utils

import (
	"net/url"
	"os"
	"strings"
)

const gcsHost = "storage.googleapis.com"

// storageBaseURL is STORAGE_ACCESS_BASE_URL, or the public bucket URL when
// only GCS_BUCKET is configured. Empty means keys are served as-is.
func storageBaseURL() string {
	if base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")); base != "" {
		return strings.TrimRight(base, "/")
	}
	if bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET")); bucket != "" {
		return "https://" + gcsHost + "/" + bucket
	}
	return ""
}

// BuildObjectAccessURL is the public URL stored on products for objectKey.
func BuildObjectAccessURL(objectKey string) string {
	base := storageBaseURL()
	if base == "" {
		return objectKey
	}
	return base + "/" + objectKey
}

// ExtractObjectKeyFromURL returns the object key behind a URL built by
// BuildObjectAccessURL, or "" when the URL points elsewhere.
func ExtractObjectKeyFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.Contains(rawURL, "..") {
		return ""
	}
	if base := storageBaseURL(); base != "" && strings.HasPrefix(rawURL, base+"/") {
		return strings.TrimPrefix(rawURL, base+"/")
	}
	if !strings.Contains(rawURL, "://") {
		return strings.TrimPrefix(rawURL, "/")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(parsed.Host, gcsHost) {
		return ""
	}
	// https://storage.googleapis.com/<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(parsed.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
