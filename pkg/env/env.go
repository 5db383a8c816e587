package env

import (
	"os"
	"strings"
)

// Prefix is shared by every variable the binaries read.
const Prefix = "TECHLOANS_"

// Get returns the trimmed value of TECHLOANS_<key>, then the bare key, then
// the fallback.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
