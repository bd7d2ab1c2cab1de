// Package instance names the running replica in logs and lease values.
package instance

import (
	"os"
	"strings"
)

// ID returns PACKDROP_INSTANCE_ID, then the hostname, then a fixed fallback.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("PACKDROP_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "packdrop-0"
}
