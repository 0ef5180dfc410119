package log_test

import (
	"fmt"

	"github.com/godaddy/asherah/go/maskedmemory/log"
)

// StdOut implements log.Interface and writes debug events to standard output.
type StdOut struct{}

func (StdOut) Debugf(format string, v ...interface{}) {
	fmt.Printf(format, v...)
}

// Use SetLogger to wire-up a custom logger to capture debug-level events.
func Example() {
	var l StdOut

	// Enable debug logging using our custom logger.
	log.SetLogger(l)
	defer log.SetLogger(nil)

	// Debug logs are now enabled and will be written to standard output via our custom logger.
	log.Debugf("refresher stopped")
	// Output: refresher stopped
}
