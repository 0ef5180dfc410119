//go:build !linux

package memcall

// ExcludeFromDump is a no-op; memguard disables core dumps for the whole process on import.
func (*wrapper) ExcludeFromDump([]byte) error {
	return nil
}
