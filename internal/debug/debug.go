// Package debug provides env-gated diagnostic logging.
//
// Output goes to stderr when PB_DEBUG is set or verbose mode is enabled
// via SetVerbose (e.g. from the --verbose CLI flag). Disabled by default
// so request serving has no logging overhead.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	enabled     = os.Getenv("PB_DEBUG") != ""
	verboseMode = false
	logMutex    sync.Mutex
)

// Enabled reports whether debug logging is active.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		logMutex.Lock()
		defer logMutex.Unlock()
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func Printf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Printf(format, args...)
	}
}
