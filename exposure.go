package maskedmemory

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/awnumar/memguard/core"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/godaddy/asherah/go/maskedmemory/internal/secrets"
	"github.com/godaddy/asherah/go/maskedmemory/log"
)

// Exposure is a plaintext copy of a segment that wipes itself once its deadline passes.
//
// The copy lives in its own mapping, locked into RAM when possible, and is co-owned by the caller and the exposure's
// wiper until one of them releases it: if the deadline passes first the bytes are zeroed and Len drops to 0, if
// Close is called first the wiper is cancelled. Either way the other side becomes a no-op. Always call Close after
// use to release the memory.
type Exposure struct {
	*exposure
	// dummy is used for attaching a finalizer since attaching one to the exposure itself results in it always
	// having a reference.
	dummy *bool
}

// exposure is an abstraction needed to allow us to close the exposure without referencing it directly in a
// finalizer. The engine and the wiper's timer only hold this inner value.
type exposure struct {
	id       uuid.UUID
	mu       sync.Mutex
	buf      *plainBuffer
	length   int
	deadline time.Time
	timer    *time.Timer

	// armed is cleared by whichever of the wiper or Close runs first.
	armed   bool
	expired bool
	closed  bool

	onDone func(*exposure)

	// stack contains a formatted stack trace collected when the exposure was created, only set if debug logging is
	// enabled.
	stack []byte
}

// newExposure takes ownership of buf, whose first length bytes hold plaintext, and returns it unarmed.
func newExposure(buf *plainBuffer, length int, onDone func(*exposure)) *Exposure {
	inner := &exposure{
		id:     uuid.New(),
		buf:    buf,
		length: length,
		onDone: onDone,
	}

	if log.DebugEnabled() {
		inner.stack = debug.Stack()
	}

	x := &Exposure{
		exposure: inner,
		dummy:    new(bool),
	}

	// Finalizer attaches to dummy reference so we can release the locked memory when it goes out of scope.
	runtime.SetFinalizer(x.dummy, func(_ *bool) {
		go inner.finalize()
	})

	return x
}

// arm starts the wiper. The timer is created with the lock held so a wiper firing immediately waits for it.
func (x *exposure) arm(expire time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.armed = true
	x.deadline = time.Now().Add(expire)
	x.timer = time.AfterFunc(expire, x.wipe)

	ExposureCounter.Inc(1)
}

// wipe zeroes the plaintext and drops the visible length to 0. It does nothing once the exposure has been wiped or
// closed.
func (x *exposure) wipe() {
	x.mu.Lock()

	if !x.armed {
		x.mu.Unlock()
		return
	}

	x.armed = false
	x.expired = true

	if x.buf != nil && x.buf.IsAlive() {
		core.Wipe(x.buf.Bytes())
	}

	x.length = 0
	x.mu.Unlock()

	ExposureCounter.Dec(1)
	log.Debugf("exposure(%s) wiped\n", x.id)

	if x.onDone != nil {
		x.onDone(x)
	}
}

func (x *exposure) finalize() {
	x.mu.Lock()
	if !x.closed {
		log.Debugf("finalized before closed: exposure(%s)\n%s\n", x.id, x.stack)
	}
	x.mu.Unlock()

	x.Close()
}

// Close cancels the wiper if it has not fired yet and destroys the plaintext copy. Close is idempotent; only the
// first call can return an error, from releasing the copy's memory.
func (x *exposure) Close() error {
	x.mu.Lock()

	if x.closed {
		x.mu.Unlock()
		return nil
	}

	wasArmed := x.armed
	x.armed = false
	x.closed = true

	if x.timer != nil {
		x.timer.Stop()
	}

	var err error
	if x.buf != nil {
		err = x.buf.Destroy()
	}

	x.length = 0
	x.mu.Unlock()

	if wasArmed {
		ExposureCounter.Dec(1)

		if x.onDone != nil {
			x.onDone(x)
		}
	}

	return err
}

// Destroy is an alias of Close.
func (x *exposure) Destroy() {
	x.Close()
}

// ID returns the identifier used for the exposure in debug logs.
func (x *exposure) ID() uuid.UUID {
	return x.id
}

// Bytes returns the plaintext. The slice points into locked memory owned by the exposure: its content is zeroed
// when the deadline passes and the memory is released by Close, so a reference MUST not be kept past Close. Prefer
// WithBytes.
func (x *exposure) Bytes() []byte {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.bytes()
}

func (x *exposure) bytes() []byte {
	if x.closed || x.buf == nil || !x.buf.IsAlive() {
		return nil
	}

	return x.buf.Bytes()[:x.length]
}

// Len returns the number of plaintext bytes currently exposed, 0 once the exposure has been wiped or closed.
func (x *exposure) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.length
}

// Deadline returns the time after which the plaintext is wiped.
func (x *exposure) Deadline() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.deadline
}

// Expired returns true if the wiper has fired.
func (x *exposure) Expired() bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.expired
}

// IsClosed returns true if the exposure has already been closed.
func (x *exposure) IsClosed() bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.closed
}

// WithBytes passes the plaintext to action and returns the error returned by action. The wiper cannot fire while
// action runs. A reference MUST not be kept to the bytes passed to action.
func (x *exposure) WithBytes(action func([]byte) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return errors.WithStack(ErrExposureClosed)
	}

	return action(x.bytes())
}

// WithBytesFunc passes the plaintext to action and returns the byte slice returned by action.
// A reference MUST not be kept to the bytes passed to action.
func (x *exposure) WithBytesFunc(action func([]byte) ([]byte, error)) ([]byte, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil, errors.WithStack(ErrExposureClosed)
	}

	return action(x.bytes())
}

// NewReader returns a new io.Reader reading the plaintext. Reads after the wiper has fired return io.EOF.
func (x *exposure) NewReader() io.Reader {
	return secrets.NewReader(x)
}

func (x *exposure) String() string {
	return fmt.Sprintf("exposure(%s)", x.id)
}
