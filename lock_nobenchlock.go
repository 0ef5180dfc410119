//go:build nobenchlock

package maskedmemory

import (
	"log"

	"github.com/godaddy/asherah/go/maskedmemory/internal/memcall"
)

// WARNING: This must NEVER be used in production as it defeats the security
// purpose of locked memory. Only use with the nobenchlock build tag.
func init() {
	log.Println("WARNING: Memory locking disabled for benchmarking - DO NOT USE IN PRODUCTION")
}

// Override the lock function when nobenchlock is specified
func lockMemory(memcall.Locker, []byte) (bool, error) {
	// No-op for benchmarking
	return false, nil
}
