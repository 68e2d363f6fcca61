// Package guard puts any test binary that imports it into backoffice test mode: the
// binaries skip startup and the schema is never applied automatically.
package guard

import "os"

var defaults = map[string]string{
	"BACKOFFICE_TEST_MODE": "1",
	"AUTO_MIGRATE":         "false",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
