package maskedmemory

import (
	"github.com/awnumar/memguard/core"
	"github.com/pkg/errors"

	"github.com/godaddy/asherah/go/maskedmemory/internal/memcall"
	"github.com/godaddy/asherah/go/maskedmemory/log"
)

// mapMemory allocates size bytes outside the Go heap. The pages are locked into RAM when the policy asks for it and
// excluded from core dumps; failing either is logged and the memory is used as is. Only the allocation itself can
// fail, reported as ErrResourceExhausted.
func mapMemory(size int, policy *Policy, mc memcall.Interface) (mem []byte, locked bool, err error) {
	mem, err = mc.Alloc(size)
	if err != nil {
		return nil, false, errors.Wrap(ErrResourceExhausted, err.Error())
	}

	if policy.LockMemory {
		locked, err = lockMemory(mc, mem)
		if err != nil {
			log.Debugf("unable to lock %d bytes into memory, continuing unlocked: %v\n", size, err)
		}
	}

	if err := mc.ExcludeFromDump(mem); err != nil {
		log.Debugf("unable to exclude %d bytes from core dumps: %v\n", size, err)
	}

	return mem, locked, nil
}

// plainBuffer holds a plaintext copy handed to a caller. It lives in its own mapping, readable and writable for its
// whole life, and is wiped before the mapping is released.
type plainBuffer struct {
	mem    []byte
	mc     memcall.Interface
	locked bool
}

func newPlainBuffer(size int, policy *Policy, mc memcall.Interface) (*plainBuffer, error) {
	mem, locked, err := mapMemory(size, policy, mc)
	if err != nil {
		return nil, err
	}

	return &plainBuffer{
		mem:    mem,
		mc:     mc,
		locked: locked,
	}, nil
}

// Bytes returns the buffer memory, nil once destroyed.
func (b *plainBuffer) Bytes() []byte {
	return b.mem
}

// IsAlive returns true until the buffer has been destroyed.
func (b *plainBuffer) IsAlive() bool {
	return b.mem != nil
}

// Destroy wipes and releases the buffer. Destroying a released buffer does nothing.
func (b *plainBuffer) Destroy() error {
	if b.mem == nil {
		return nil
	}

	core.Wipe(b.mem)

	err := memcall.Clean(b.mc, b.mem, b.locked)
	b.mem = nil

	return err
}
