package maskedmemory

import (
	"unsafe"

	// NOTE: If we ever remove the import of core, we'll need to add an init func that calls memcall.DisableCoreDumps
	"github.com/awnumar/memguard/core"
	"github.com/pkg/errors"

	"github.com/godaddy/asherah/go/maskedmemory/internal/mask"
	"github.com/godaddy/asherah/go/maskedmemory/internal/memcall"
)

// segment is the allocation record of one protected segment. A single mapping holds three regions:
//
//	masked  | size bytes      | plaintext XOR key(pad)
//	pad     | 3 x size bytes  | current pad
//	scratch | 3 x size bytes  | next pad, wiped after use
//
// The plaintext is never stored here. A segment is only touched with the engine lock held.
type segment struct {
	mem     []byte
	masked  []byte
	pad     []byte
	scratch []byte

	// size is the logical capacity, used the number of bytes holding content set by a caller.
	size int
	used int

	mc      memcall.Interface
	locked  bool
	protect bool
}

// newSegment maps the memory for a segment of the given size. The regions are left unmasked; callers must store
// content before the segment is used.
func newSegment(size int, policy *Policy, mc memcall.Interface) (*segment, error) {
	if size < 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid segment size %d", size)
	}

	padSize := mask.PadSize(size)

	mem, locked, err := mapMemory(size+2*padSize, policy, mc)
	if err != nil {
		return nil, err
	}

	s := &segment{
		mem:     mem,
		masked:  mem[:size:size],
		pad:     mem[size : size+padSize : size+padSize],
		scratch: mem[size+padSize:],
		size:    size,
		mc:      mc,
		locked:  locked,
		protect: policy.ProtectAtRest,
	}

	return s, nil
}

// handle returns the address of the masked buffer.
func (s *segment) handle() Handle {
	return Handle(uintptr(unsafe.Pointer(&s.masked[0])))
}

// with makes the segment memory accessible for the duration of action.
func (s *segment) with(action func() error) (err error) {
	if err = s.access(); err != nil {
		return
	}

	defer func() {
		if err2 := s.release(); err2 != nil {
			if err == nil {
				err = err2
				return
			}

			err = errors.WithMessage(err, err2.Error())

			return
		}
	}()

	return action()
}

// access sets the protection of the segment's pages to read-write, if needed.
func (s *segment) access() error {
	if !s.protect {
		return nil
	}

	if err := s.mc.Protect(s.mem, memcall.ReadWrite()); err != nil {
		return errors.WithMessage(err, "unable to mark segment as read-write")
	}

	return nil
}

// release sets the protection of the segment's pages to none, if needed.
func (s *segment) release() error {
	if !s.protect {
		return nil
	}

	if err := s.mc.Protect(s.mem, memcall.NoAccess()); err != nil {
		return errors.WithMessage(err, "unable to mark segment as no-access")
	}

	return nil
}

// store masks plaintext under a freshly drawn pad. The new pad is drawn into scratch first so a failed draw leaves
// the current content intact.
func (s *segment) store(plaintext []byte, scramble func([]byte) error) error {
	if len(plaintext) != s.size {
		return errors.Wrapf(ErrInvalidArgument, "plaintext has %d bytes, segment holds %d", len(plaintext), s.size)
	}

	if err := scramble(s.scratch); err != nil {
		return errors.Wrap(err, "unable to draw pad")
	}

	if err := mask.Mask(s.masked, plaintext, s.scratch); err != nil {
		core.Wipe(s.scratch)
		return err
	}

	copy(s.pad, s.scratch)
	core.Wipe(s.scratch)

	return nil
}

// rotate re-masks the segment under a freshly drawn pad without reconstructing the plaintext.
func (s *segment) rotate(scramble func([]byte) error) error {
	if err := scramble(s.scratch); err != nil {
		return errors.Wrap(err, "unable to draw pad")
	}

	if err := mask.Remask(s.masked, s.pad, s.scratch); err != nil {
		core.Wipe(s.scratch)
		return err
	}

	copy(s.pad, s.scratch)
	core.Wipe(s.scratch)

	return nil
}

// reveal unmasks the first len(dst) bytes of the segment into dst.
func (s *segment) reveal(dst []byte) error {
	return mask.Unmask(dst, s.masked, s.pad)
}

// close wipes and releases the segment memory.
func (s *segment) close() error {
	if s.mem == nil {
		return nil
	}

	if err := s.access(); err != nil {
		return err
	}

	core.Wipe(s.mem)

	if err := memcall.Clean(s.mc, s.mem, s.locked); err != nil {
		return err
	}

	s.mem, s.masked, s.pad, s.scratch = nil, nil, nil, nil
	s.used = 0

	return nil
}
