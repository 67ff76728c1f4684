package scheduler

import (
	"testing"
	"time"
)

func TestVU_StateString(t *testing.T) {
	tests := []struct {
		state VUState
		want  string
	}{
		{VUStateIdle, "idle"},
		{VUStateRunning, "running"},
		{VUStateDraining, "draining"},
		{VUStateStopped, "stopped"},
		{VUState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("VUState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestVU_DrainIsIdempotent(t *testing.T) {
	vu := newVU(1)
	vu.Drain()
	vu.Drain() // must not close stopCh twice

	if vu.State() != VUStateDraining {
		t.Errorf("State() = %s, want draining", vu.State())
	}
	select {
	case <-vu.stopCh:
	default:
		t.Error("stopCh should be closed after Drain")
	}
}

func TestVU_DrainFromRunning(t *testing.T) {
	vu := newVU(1)
	vu.state.Store(int32(VUStateRunning))
	vu.Drain()
	if vu.State() != VUStateDraining {
		t.Errorf("State() = %s, want draining", vu.State())
	}
}

func TestVU_DrainAfterStoppedIsNoop(t *testing.T) {
	vu := newVU(1)
	vu.markStopped()
	vu.Drain()
	if vu.State() != VUStateStopped {
		t.Errorf("State() = %s, want stopped", vu.State())
	}
}

func TestVU_WaitStopped(t *testing.T) {
	vu := newVU(1)

	if vu.waitStopped(10 * time.Millisecond) {
		t.Error("waitStopped should time out while the VU is live")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		vu.markStopped()
	}()
	if !vu.waitStopped(time.Second) {
		t.Error("waitStopped should observe markStopped")
	}
	// markStopped is idempotent.
	vu.markStopped()
}
