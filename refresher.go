package maskedmemory

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/godaddy/asherah/go/maskedmemory/log"
)

// refresher runs cycle on a single goroutine every interval until stopped.
type refresher struct {
	interval time.Duration
	cycle    func()
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// newRefresher starts a refresher.
func newRefresher(interval time.Duration, cycle func()) *refresher {
	r := &refresher{
		interval: interval,
		cycle:    cycle,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go r.run()

	return r
}

func (r *refresher) run() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runCycle()
		case <-r.done:
			log.Debugf("refresher stopped\n")
			return
		}
	}
}

// runCycle keeps a failing cycle from taking the process down with it.
func (r *refresher) runCycle() {
	defer func() {
		if v := recover(); v != nil {
			log.Debugf("refresh cycle panicked, retrying next interval: %v\n", v)
		}
	}()

	r.cycle()
}

// stop signals the refresher and blocks until its current cycle, if any, has finished.
func (r *refresher) stop() {
	r.once.Do(func() {
		close(r.done)
	})

	<-r.stopped
}

// backgroundRefresh is the refresher cycle of an active engine.
func (e *Engine) backgroundRefresh(ctx *protection) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !ctx.enabled {
		return
	}

	if failed, err := e.refreshLocked(ctx); err != nil {
		log.Debugf("refresh cycle skipped %d of %d segment(s): %v\n", failed, ctx.segments.Len(), err)
	}
}

// refreshLocked re-masks every segment under a fresh pad. A segment that fails is skipped and the cycle carries on;
// the first error is returned along with the number of failures. The giant lock must be held.
func (e *Engine) refreshLocked(ctx *protection) (failed int, err error) {
	defer RefreshTimer.UpdateSince(time.Now())

	ctx.segments.ForEach(func(key uint64, s *segment) bool {
		err2 := s.with(func() error {
			return s.rotate(e.scramble)
		})
		if err2 != nil {
			failed++

			RefreshFailedCounter.Inc(1)
			log.Debugf("unable to refresh segment(%s): %v\n", Handle(key), err2)

			if err == nil {
				err = errors.WithMessagef(err2, "segment %s", Handle(key))
			}
		}

		return true
	})

	return failed, err
}
