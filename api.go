package maskedmemory

import "time"

// std is the process-wide engine behind the package-level functions.
var std = NewEngine(nil)

// Init activates the default engine. See Engine.Init.
func Init(interval time.Duration) error {
	return std.Init(interval)
}

// Deinit finalizes the default engine. See Engine.Deinit.
func Deinit() error {
	return std.Deinit()
}

// Alloc allocates a segment from the default engine. See Engine.Alloc.
func Alloc(size int) (Handle, error) {
	return std.Alloc(size)
}

// Free releases a segment of the default engine. See Engine.Free.
func Free(h Handle) error {
	return std.Free(h)
}

// Set masks plaintext into a segment of the default engine and wipes plaintext. See Engine.Set.
func Set(h Handle, plaintext []byte) error {
	return std.Set(h, plaintext)
}

// Get returns a copy of a segment's content from the default engine. See Engine.Get.
func Get(h Handle) ([]byte, error) {
	return std.Get(h)
}

// TimedGet returns a self-wiping copy of a segment's content from the default engine. See Engine.TimedGet.
func TimedGet(h Handle, expire time.Duration) (*Exposure, error) {
	return std.TimedGet(h, expire)
}

// Realloc resizes a segment of the default engine. See Engine.Realloc.
func Realloc(h Handle, newSize int) (Handle, error) {
	return std.Realloc(h, newSize)
}

// Refresh re-masks every segment of the default engine now. See Engine.Refresh.
func Refresh() error {
	return std.Refresh()
}
