// Package instance names the running process in logs.
package instance

import (
	"os"
	"strings"
)

// ID returns MPP_INSTANCE_ID, then the platform's DYNO, then the host name,
// falling back to "local".
func ID() string {
	for _, key := range []string{"MPP_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
