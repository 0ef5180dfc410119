//go:build linux

package memcall

import "golang.org/x/sys/unix"

// ExcludeFromDump marks b with MADV_DONTDUMP so it is left out of core dumps.
func (*wrapper) ExcludeFromDump(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTDUMP)
}
