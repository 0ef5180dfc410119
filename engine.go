package maskedmemory

import (
	"sync"
	"time"

	"github.com/awnumar/memguard/core"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/godaddy/asherah/go/maskedmemory/internal/memcall"
	"github.com/godaddy/asherah/go/maskedmemory/internal/registry"
	"github.com/godaddy/asherah/go/maskedmemory/log"
)

// Engine owns a protection context: the giant lock, the allocation registry and the refresher that re-masks every
// segment on a fixed cadence. An Engine is inactive until Init and can be re-initialized after Deinit.
//
// Every operation takes the giant lock for its whole duration, as does each refresh cycle, so no caller ever
// observes a segment whose pad has changed but whose masked buffer has not. Engine methods are not reentrant.
type Engine struct {
	// lifecycle serializes Init and Deinit.
	lifecycle sync.Mutex

	// mu is the giant lock guarding ctx and everything reachable from it.
	mu  sync.Mutex
	ctx *protection

	policy   *Policy
	mc       memcall.Interface
	scramble func([]byte) error

	exposuresMu sync.Mutex
	exposures   map[uuid.UUID]*exposure
}

// protection is the state of an active engine.
type protection struct {
	interval  time.Duration
	segments  *registry.Tree[*segment]
	refresher *refresher

	// enabled is cleared by Deinit under the giant lock; a refresh cycle that finds it cleared does nothing.
	enabled bool
}

// NewEngine returns an inactive Engine configured by policy. A nil policy uses NewPolicy defaults.
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = NewPolicy()
	}

	return &Engine{
		policy:    policy,
		mc:        memcall.Default,
		scramble:  core.Scramble,
		exposures: make(map[uuid.UUID]*exposure),
	}
}

// Init activates the engine and starts re-masking every segment each interval. Calling Init on an active engine
// does nothing and succeeds.
func (e *Engine) Init(interval time.Duration) error {
	if interval <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "refresh interval must be positive, got %s", interval)
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx != nil {
		return nil
	}

	ctx := &protection{
		interval: interval,
		segments: registry.New[*segment](),
		enabled:  true,
	}

	ctx.refresher = newRefresher(interval, func() {
		e.backgroundRefresh(ctx)
	})

	e.ctx = ctx

	log.Debugf("engine initialized, refreshing every %s\n", interval)

	return nil
}

// Deinit stops the refresher, waits for its current cycle to finish, wipes outstanding exposures and wipes and
// frees every segment still allocated.
func (e *Engine) Deinit() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()

	ctx := e.ctx
	if ctx == nil {
		e.mu.Unlock()
		return notInitialized()
	}

	ctx.enabled = false
	e.ctx = nil
	e.mu.Unlock()

	// The refresher takes the giant lock, so it must be waited for without holding it.
	ctx.refresher.stop()

	e.expireExposures()

	var (
		err    error
		leaked int
	)

	ctx.segments.Clear(func(_ uint64, s *segment) {
		leaked++

		if err2 := s.close(); err2 != nil {
			if err == nil {
				err = err2
			} else {
				err = errors.Wrap(err, err2.Error())
			}
		}

		InUseCounter.Dec(1)
	})

	if leaked > 0 {
		log.Debugf("deinit released %d segment(s) that were never freed\n", leaked)
	}

	return err
}

// Active returns true if the engine has been initialized and not finalized.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ctx != nil
}

// active returns the protection context; the giant lock must be held.
func (e *Engine) active() (*protection, error) {
	if e.ctx == nil {
		return nil, notInitialized()
	}

	return e.ctx, nil
}

// lookup returns the segment for h; the giant lock must be held.
func (e *Engine) lookup(h Handle) (*protection, *segment, error) {
	ctx, err := e.active()
	if err != nil {
		return nil, nil, err
	}

	s, ok := ctx.segments.Lookup(uint64(h))
	if !ok {
		return nil, nil, notFound(h)
	}

	return ctx, s, nil
}

func (e *Engine) checkSize(size int) error {
	if size < 1 {
		return errors.Wrapf(ErrInvalidArgument, "invalid segment size %d", size)
	}

	if size > e.policy.MaxSegmentSize {
		return errors.Wrapf(ErrResourceExhausted, "segment size %d exceeds maximum of %d", size, e.policy.MaxSegmentSize)
	}

	return nil
}

// Alloc returns a new segment of size bytes holding no content.
func (e *Engine) Alloc(size int) (Handle, error) {
	defer AllocTimer.UpdateSince(time.Now())

	if err := e.checkSize(size); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := e.active()
	if err != nil {
		return 0, err
	}

	s, err := e.allocLocked(ctx, size, 0, nil)
	if err != nil {
		return 0, err
	}

	return s.handle(), nil
}

// allocLocked creates a segment of size bytes, of which used count as content, and registers it. fill, if not nil,
// writes the initial plaintext; it is staged in the masked buffer and masked in place, so it never leaves the
// segment's mapping. The remaining bytes are zero.
func (e *Engine) allocLocked(ctx *protection, size, used int, fill func(plaintext []byte) error) (*segment, error) {
	s, err := newSegment(size, e.policy, e.mc)
	if err != nil {
		return nil, err
	}

	err = s.with(func() error {
		core.Wipe(s.masked)

		if fill != nil {
			if err := fill(s.masked); err != nil {
				return err
			}
		}

		return s.store(s.masked, e.scramble)
	})
	if err == nil {
		err = ctx.segments.Insert(uint64(s.handle()), s)
	}

	if err != nil {
		// Shouldn't happen, but free up the resources if it does. We intentionally
		// ignore the errors from the cleanup and return the reason why we got here.
		if err2 := s.close(); err2 != nil {
			err = errors.Wrap(err, err2.Error())
		}

		return nil, err
	}

	s.used = used

	AllocCounter.Inc(1)
	InUseCounter.Inc(1)

	return s, nil
}

// Free wipes and releases the segment identified by h.
func (e *Engine) Free(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := e.active()
	if err != nil {
		return err
	}

	s, ok := ctx.segments.Remove(uint64(h))
	if !ok {
		return notFound(h)
	}

	InUseCounter.Dec(1)

	return s.close()
}

// Set masks plaintext into the segment identified by h. plaintext must be exactly as long as the segment and is
// wiped once it has been masked.
func (e *Engine) Set(h Handle, plaintext []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, s, err := e.lookup(h)
	if err != nil {
		return err
	}

	if len(plaintext) != s.size {
		return errors.Wrapf(ErrInvalidArgument, "plaintext has %d bytes, segment %s holds %d", len(plaintext), h, s.size)
	}

	err = s.with(func() error {
		return s.store(plaintext, e.scramble)
	})
	if err != nil {
		return err
	}

	s.used = s.size

	core.Wipe(plaintext)

	return nil
}

// Get returns a copy of the content of the segment identified by h. The caller owns the returned slice and should
// wipe it after use.
func (e *Engine) Get(h Handle) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, s, err := e.lookup(h)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, s.used)

	err = s.with(func() error {
		return s.reveal(plaintext)
	})
	if err != nil {
		core.Wipe(plaintext)
		return nil, err
	}

	return plaintext, nil
}

// TimedGet returns a copy of the content of the segment identified by h that is wiped after expire.
func (e *Engine) TimedGet(h Handle, expire time.Duration) (*Exposure, error) {
	if expire <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "expiry must be positive, got %s", expire)
	}

	e.mu.Lock()

	_, s, err := e.lookup(h)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	var buf *plainBuffer

	if s.used > 0 {
		buf, err = newPlainBuffer(s.used, e.policy, e.mc)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}

		err = s.with(func() error {
			return s.reveal(buf.Bytes())
		})
		if err != nil {
			e.mu.Unlock()

			if err2 := buf.Destroy(); err2 != nil {
				err = errors.Wrap(err, err2.Error())
			}

			return nil, err
		}
	}

	x := newExposure(buf, s.used, e.untrack)

	// Tracked and armed before the lock is released so a concurrent Deinit always finds it.
	e.track(x.exposure)
	x.arm(expire)

	e.mu.Unlock()

	log.Debugf("%s of segment(%s) expires in %s\n", x, h, expire)

	return x, nil
}

// Realloc moves the content of the segment identified by h into a new segment of newSize bytes, truncating or
// zero-padding it, and frees the old segment. The content is unmasked straight into the new segment's mapping. On
// error the old segment is left untouched.
func (e *Engine) Realloc(h Handle, newSize int) (Handle, error) {
	if h == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "nil handle")
	}

	if err := e.checkSize(newSize); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, old, err := e.lookup(h)
	if err != nil {
		return 0, err
	}

	used := old.used
	if used > newSize {
		used = newSize
	}

	s, err := e.allocLocked(ctx, newSize, used, func(plaintext []byte) error {
		return old.with(func() error {
			return old.reveal(plaintext[:used])
		})
	})
	if err != nil {
		return 0, err
	}

	ctx.segments.Remove(uint64(h))
	InUseCounter.Dec(1)

	if err := old.close(); err != nil {
		log.Debugf("unable to release segment(%s) after reallocation: %v\n", h, err)
	}

	return s.handle(), nil
}

// Refresh re-masks every segment immediately, in addition to the background cycle. Segments that fail are skipped
// and reported in the returned error.
func (e *Engine) Refresh() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := e.active()
	if err != nil {
		return err
	}

	failed, err := e.refreshLocked(ctx)
	if err != nil {
		return errors.WithMessagef(err, "%d segment(s) failed to refresh", failed)
	}

	return nil
}

// Size returns the logical size of the segment identified by h.
func (e *Engine) Size(h Handle) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, s, err := e.lookup(h)
	if err != nil {
		return 0, err
	}

	return s.size, nil
}

// Used returns the number of bytes of content held by the segment identified by h.
func (e *Engine) Used(h Handle) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, s, err := e.lookup(h)
	if err != nil {
		return 0, err
	}

	return s.used, nil
}

// Segments returns the number of live segments, 0 if the engine is inactive.
func (e *Engine) Segments() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return 0
	}

	return e.ctx.segments.Len()
}

func (e *Engine) track(x *exposure) {
	e.exposuresMu.Lock()
	defer e.exposuresMu.Unlock()

	e.exposures[x.id] = x
}

func (e *Engine) untrack(x *exposure) {
	e.exposuresMu.Lock()
	defer e.exposuresMu.Unlock()

	delete(e.exposures, x.id)
}

// expireExposures fires the wiper of every outstanding exposure now.
func (e *Engine) expireExposures() {
	e.exposuresMu.Lock()

	pending := make([]*exposure, 0, len(e.exposures))
	for _, x := range e.exposures {
		pending = append(pending, x)
	}

	e.exposuresMu.Unlock()

	for _, x := range pending {
		x.wipe()
	}

	if len(pending) > 0 {
		log.Debugf("deinit wiped %d outstanding exposure(s)\n", len(pending))
	}
}
