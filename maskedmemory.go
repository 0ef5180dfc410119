package maskedmemory

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

var (
	// AllocCounter is used to track cumulative segment allocations.
	//
	// AllocCounter increases as segments are allocated, but unlike
	// InUseCounter, it does not decrease as segments are freed.
	AllocCounter = metrics.GetOrRegisterCounter("segment.allocated", nil)

	// InUseCounter is used to track the number of segments currently in use.
	//
	// InUseCounter increases as segments are allocated and decreases
	// as segments are freed.
	InUseCounter = metrics.GetOrRegisterCounter("segment.inuse", nil)

	// ExposureCounter tracks the number of timed exposures whose wiper has not fired or been cancelled yet.
	ExposureCounter = metrics.GetOrRegisterCounter("exposure.armed", nil)

	// RefreshFailedCounter counts segments skipped by a refresh cycle because re-masking them failed.
	RefreshFailedCounter = metrics.GetOrRegisterCounter("segment.refresh.failed", nil)

	// AllocTimer is used to record the time taken to allocate a segment.
	AllocTimer = metrics.GetOrRegisterTimer("maskedmemory.alloctimer", nil)

	// RefreshTimer is used to record the time taken by a full refresh cycle.
	RefreshTimer = metrics.GetOrRegisterTimer("maskedmemory.refreshtimer", nil)
)

// Handle identifies a protected segment. Its value is the address of the segment's masked buffer, which also keys
// the allocation registry. The zero Handle never refers to a segment.
type Handle uintptr

func (h Handle) String() string {
	return fmt.Sprintf("%#x", uintptr(h))
}
