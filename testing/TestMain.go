// Package testing is imported by tests that build the full router. It enables test mode
// and points Redis at an address that fails fast instead of a live server.
package testing

import (
	"os"
	stdtesting "testing"

	_ "github.com/odyssey-erp/backoffice/internal/testing/guard"
)

func init() {
	if os.Getenv("REDIS_ADDR") == "" {
		_ = os.Setenv("REDIS_ADDR", "127.0.0.1:0")
	}
}

// TestMain runs m with test mode already set by the guard import.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
