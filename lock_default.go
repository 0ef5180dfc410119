//go:build !nobenchlock

package maskedmemory

import "github.com/godaddy/asherah/go/maskedmemory/internal/memcall"

// lockMemory locks memory pages to prevent swapping to disk and reports whether they are locked.
// This is the default implementation used in production
func lockMemory(mc memcall.Locker, b []byte) (bool, error) {
	if err := mc.Lock(b); err != nil {
		return false, err
	}

	return true, nil
}
