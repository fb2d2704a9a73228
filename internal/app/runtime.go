package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv makes the wms and worker binaries exit before they dial
// Postgres or Redis.
const TestModeEnv = "WMS_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether WMS_TEST_MODE holds a true value.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads WMS_TEST_MODE. Values strconv cannot parse count
// as false.
func RefreshTestMode() {
	on, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	testMode.on.Store(on)
}
