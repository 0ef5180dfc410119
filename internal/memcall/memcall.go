// Package memcall wraps the OS memory calls used to back segments so they can be replaced in tests.
package memcall

import "github.com/awnumar/memcall"

// Allocator maps page-aligned memory outside the Go heap.
type Allocator interface {
	Alloc(size int) ([]byte, error)
}

// Freer unmaps memory obtained from an Allocator.
type Freer interface {
	Free([]byte) error
}

// Protector changes the access protection of mapped pages, e.g. to make a segment unreadable at rest.
type Protector interface {
	Protect([]byte, MemoryProtectionFlag) error
}

// Locker locks mapped pages into RAM so they are never swapped to disk.
type Locker interface {
	Lock([]byte) error
}

// Unlocker reverses Locker before the pages are unmapped.
type Unlocker interface {
	Unlock([]byte) error
}

// Adviser excludes a mapping from core dumps where the platform supports it.
type Adviser interface {
	ExcludeFromDump([]byte) error
}

// Interface groups every OS memory call a segment or exposure buffer needs, so tests can inject failures.
type Interface interface {
	Allocator
	Freer
	Protector
	Locker
	Unlocker
	Adviser
}

// wrapper implements Interface
type wrapper struct {
}

// Default is a default implementation of Interface that directly wraps
// functions exported by the memcall package.
var Default Interface = &wrapper{}

// Alloc maps size bytes of page-aligned memory outside the Go heap.
func (*wrapper) Alloc(size int) ([]byte, error) {
	return memcall.Alloc(size)
}

func (*wrapper) Protect(b []byte, mpf MemoryProtectionFlag) error {
	return memcall.Protect(b, mpf)
}

func (*wrapper) Lock(b []byte) error {
	return memcall.Lock(b)
}

func (*wrapper) Unlock(b []byte) error {
	return memcall.Unlock(b)
}

func (*wrapper) Free(b []byte) error {
	return memcall.Free(b)
}
