// Package testing prepares test binaries that start the wms wiring. Importing
// it for side effects sets WMS_TEST_MODE and silences the default logger
// unless WMS_TEST_VERBOSE is set.
package testing

import (
	"io"
	"log/slog"
	"os"
	"sync"
	stdtesting "testing"
)

const (
	testModeEnv = "WMS_TEST_MODE"
	verboseEnv  = "WMS_TEST_VERBOSE"
)

var once sync.Once

func prepare() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv(verboseEnv) == "" {
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		}
	})
}

func init() {
	prepare()
}

// TestMain is usable as a package TestMain by suites that import this one.
func TestMain(m *stdtesting.M) {
	prepare()
	os.Exit(m.Run())
}
