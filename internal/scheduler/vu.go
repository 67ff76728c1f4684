package scheduler

import (
	"sync/atomic"
	"time"
)

// VUState is the lifecycle state of a virtual user.
type VUState int32

const (
	// VUStateIdle means the VU exists but is between iterations.
	VUStateIdle VUState = iota
	// VUStateRunning means the VU is executing an iteration.
	VUStateRunning
	// VUStateDraining means the VU finishes its current iteration and then
	// stops; no new iteration starts.
	VUStateDraining
	// VUStateStopped means the VU's goroutine has exited.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateDraining:
		return "draining"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VU is one concurrent execution unit. Its state word is atomic so the
// controller can read it without locking; stop and done channels coordinate
// draining with the worker goroutine.
type VU struct {
	ID int

	state      atomic.Int32
	stopCh     chan struct{}
	doneCh     chan struct{}
	iterations atomic.Int64
}

func newVU(id int) *VU {
	return &VU{
		ID:     id,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (vu *VU) State() VUState {
	return VUState(vu.state.Load())
}

// Iterations returns how many iterations this VU has completed.
func (vu *VU) Iterations() int64 {
	return vu.iterations.Load()
}

// Drain asks the VU to stop after its current iteration. A draining VU is
// never interrupted mid-iteration.
func (vu *VU) Drain() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateDraining)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateDraining)) {
		close(vu.stopCh)
	}
}

// markStopped records that the VU's goroutine has exited.
func (vu *VU) markStopped() {
	vu.state.Store(int32(VUStateStopped))
	select {
	case <-vu.doneCh:
	default:
		close(vu.doneCh)
	}
}

// waitStopped blocks until the VU goroutine exits or the timeout elapses.
// Returns true if it stopped in time.
func (vu *VU) waitStopped(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}
