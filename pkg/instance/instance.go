package instance

import (
	"os"
	"strings"
)

const fallbackID = "techloans-worker"

// ID identifies the running process in logs and lock owners. TECHLOANS_WORKER_ID
// wins over the hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("TECHLOANS_WORKER_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
