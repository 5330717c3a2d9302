// Package env holds the few environment lookups that happen before the
// typed config is loaded.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the variable, or fallback when unset or
// blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// IsTruthy reports whether the variable holds a common true-ish value.
func IsTruthy(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
