package maskedmemory

import "time"

// Default values for Policy if not overridden.
const (
	DefaultRefreshInterval = time.Second
	DefaultMaxSegmentSize  = 64 << 20 // 64 MiB
)

// Policy contains options to customize how an Engine backs its segments.
type Policy struct {
	// MaxSegmentSize is the largest segment, in bytes, Alloc and Realloc accept. Each segment maps seven times its
	// size to hold the masked buffer, the pad and the scratch space for the next pad.
	MaxSegmentSize int
	// LockMemory determines whether segment memory is locked into RAM. A failure to lock is logged and the segment
	// is used unlocked.
	LockMemory bool
	// ProtectAtRest determines whether segment memory is marked no-access between operations.
	ProtectAtRest bool
}

// PolicyOption is used to configure a Policy.
type PolicyOption func(*Policy)

// WithMaxSegmentSize sets the largest segment size accepted by the engine.
func WithMaxSegmentSize(size int) PolicyOption {
	return func(policy *Policy) {
		policy.MaxSegmentSize = size
	}
}

// WithoutMemoryLock disables locking segment memory into RAM.
func WithoutMemoryLock() PolicyOption {
	return func(policy *Policy) {
		policy.LockMemory = false
	}
}

// WithoutPageProtection leaves segment memory readable and writable between operations.
func WithoutPageProtection() PolicyOption {
	return func(policy *Policy) {
		policy.ProtectAtRest = false
	}
}

// NewPolicy returns a new Policy with default values and optional overrides.
func NewPolicy(opts ...PolicyOption) *Policy {
	policy := &Policy{
		MaxSegmentSize: DefaultMaxSegmentSize,
		LockMemory:     true,
		ProtectAtRest:  true,
	}

	for _, opt := range opts {
		opt(policy)
	}

	return policy
}
