// Package scheduler drives concurrent virtual users through a staged ramp
// profile, spawning and draining workers so the live concurrency tracks the
// target curve over elapsed run time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Stage is one time-boxed segment of the ramp profile.
type Stage struct {
	Duration time.Duration
	Target   int
}

// RampMode controls how the target moves within a stage.
type RampMode int

const (
	// RampLinear interpolates the target linearly across the stage.
	RampLinear RampMode = iota
	// RampStep jumps to the stage target at the stage boundary.
	RampStep
)

// DefaultTickInterval is how often the controller re-evaluates the target
// concurrency curve.
const DefaultTickInterval = 100 * time.Millisecond

// DefaultGracefulRampDown bounds the wait for draining VUs at run end.
const DefaultGracefulRampDown = 30 * time.Second

// Config is the ramp profile for one run. It is immutable once the run
// starts.
type Config struct {
	// StartVUs is the concurrency at t=0, before the first stage ramps.
	StartVUs int

	// Stages define the target-concurrency curve, in order.
	Stages []Stage

	// GracefulRampDown bounds how long draining VUs may finish their
	// current iteration before being force-stopped.
	GracefulRampDown time.Duration

	// ThinkTime is the pause policy between iterations. Nil means none.
	ThinkTime ThinkTime

	// Ramp selects linear interpolation or stepwise target changes.
	Ramp RampMode

	// TickInterval overrides the controller tick. Zero means the default.
	TickInterval time.Duration
}

// Validate fails fast on a malformed ramp profile.
func (c *Config) Validate() error {
	if c.StartVUs < 0 {
		return fmt.Errorf("startVUs must be non-negative, got %d", c.StartVUs)
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	for i, st := range c.Stages {
		if st.Duration < 0 {
			return fmt.Errorf("stage %d: duration must be non-negative, got %s", i, st.Duration)
		}
		if st.Target < 0 {
			return fmt.Errorf("stage %d: target must be non-negative, got %d", i, st.Target)
		}
	}
	if c.TotalDuration() <= 0 {
		return fmt.Errorf("total stage duration must be positive")
	}
	if c.GracefulRampDown < 0 {
		return fmt.Errorf("gracefulRampDown must be non-negative, got %s", c.GracefulRampDown)
	}
	return nil
}

// TotalDuration is the sum of all stage durations.
func (c *Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range c.Stages {
		total += st.Duration
	}
	return total
}

// TargetAt returns the target VU count at the given elapsed run time,
// following the piecewise curve the stages define.
func (c *Config) TargetAt(elapsed time.Duration) int {
	prev := c.StartVUs
	var stageStart time.Duration

	for _, st := range c.Stages {
		stageEnd := stageStart + st.Duration
		if elapsed < stageEnd {
			if c.Ramp == RampStep || st.Duration == 0 {
				return st.Target
			}
			progress := float64(elapsed-stageStart) / float64(st.Duration)
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}
			return int(float64(prev) + float64(st.Target-prev)*progress + 0.5)
		}
		prev = st.Target
		stageStart = stageEnd
	}
	return prev
}

// stageIndexAt returns the index of the stage covering the elapsed time.
// Past the last stage it returns len(Stages)-1.
func (c *Config) stageIndexAt(elapsed time.Duration) int {
	var stageStart time.Duration
	for i, st := range c.Stages {
		stageEnd := stageStart + st.Duration
		if elapsed < stageEnd {
			return i
		}
		stageStart = stageEnd
	}
	return len(c.Stages) - 1
}

// IterationFunc runs one complete iteration. Implementations must never
// panic across this boundary and should honor ctx cancellation at their
// blocking points.
type IterationFunc func(ctx context.Context)

// Scheduler realizes the target-concurrency curve by spawning and draining
// VU workers, each looping iterations with think-time pauses.
type Scheduler struct {
	config  Config
	iterate IterationFunc

	vusMu  sync.Mutex
	active []*VU

	wg         sync.WaitGroup
	nextID     atomic.Int64
	activeVUs  atomic.Int32
	iterations atomic.Int64
	running    atomic.Bool

	startTime time.Time
}

// New creates a scheduler for the given profile and iteration body.
func New(config Config, iterate IterationFunc) (*Scheduler, error) {
	if iterate == nil {
		return nil, fmt.Errorf("iteration function is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ThinkTime == nil {
		config.ThinkTime = NoThinkTime()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.GracefulRampDown == 0 {
		config.GracefulRampDown = DefaultGracefulRampDown
	}
	return &Scheduler{config: config, iterate: iterate}, nil
}

// Run executes the full ramp profile and blocks until every VU has drained
// or the grace period expired. It returns the context's error if the run was
// cancelled from outside, nil otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler is already running")
	}
	defer s.running.Store(false)

	s.startTime = time.Now()

	// rampCtx ends when the profile is over; iterCtx is what in-flight
	// iterations see and survives into the grace period.
	rampCtx, cancelRamp := context.WithTimeout(ctx, s.config.TotalDuration())
	defer cancelRamp()
	iterCtx, cancelIter := context.WithCancel(ctx)
	defer cancelIter()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	s.adjust(iterCtx, s.config.TargetAt(0))

controller:
	for {
		select {
		case <-rampCtx.Done():
			break controller
		case <-ticker.C:
			s.adjust(iterCtx, s.config.TargetAt(time.Since(s.startTime)))
		}
	}

	s.drainAll()
	if !s.waitWorkers(s.config.GracefulRampDown) {
		// Grace expired: abandon in-flight iterations.
		cancelIter()
	}
	s.wg.Wait()

	return ctx.Err()
}

// adjust spawns or drains VUs so the live count matches target.
func (s *Scheduler) adjust(ctx context.Context, target int) {
	s.vusMu.Lock()
	defer s.vusMu.Unlock()

	current := len(s.active)
	if target > current {
		for i := current; i < target; i++ {
			vu := newVU(int(s.nextID.Add(1)))
			s.active = append(s.active, vu)
			s.wg.Add(1)
			go s.runVU(ctx, vu)
		}
	} else if target < current {
		// Drain from the end; drained VUs finish their current iteration.
		for i := current - 1; i >= target; i-- {
			s.active[i].Drain()
		}
		s.active = s.active[:target]
	}
	s.activeVUs.Store(int32(len(s.active)))
}

func (s *Scheduler) drainAll() {
	s.vusMu.Lock()
	defer s.vusMu.Unlock()
	for _, vu := range s.active {
		vu.Drain()
	}
	s.active = s.active[:0]
	s.activeVUs.Store(0)
}

// waitWorkers waits for all VU goroutines with a timeout. Returns true if
// they all exited in time.
func (s *Scheduler) waitWorkers(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// runVU is the worker loop: one iteration, then think time, until drained or
// the iteration context is cancelled.
func (s *Scheduler) runVU(ctx context.Context, vu *VU) {
	defer s.wg.Done()
	defer vu.markStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case <-vu.stopCh:
			return
		default:
		}
		// The CAS is the gate: if Drain landed since the last check the
		// state is no longer Idle and no new iteration may start.
		if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
			return
		}
		s.iterate(ctx)
		vu.iterations.Add(1)
		s.iterations.Add(1)
		vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))

		if pause := s.config.ThinkTime.Pause(); pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-vu.stopCh:
				return
			case <-time.After(pause):
			}
		}
	}
}

// Stats is a point-in-time view of scheduler progress.
type Stats struct {
	StartTime    time.Time
	Elapsed      time.Duration
	ActiveVUs    int
	TargetVUs    int
	Iterations   int64
	CurrentStage int
	TotalStages  int
}

// Stats reports current progress. Safe to call from another goroutine while
// the run is in flight.
func (s *Scheduler) Stats() Stats {
	var elapsed time.Duration
	if !s.startTime.IsZero() {
		elapsed = time.Since(s.startTime)
	}
	return Stats{
		StartTime:    s.startTime,
		Elapsed:      elapsed,
		ActiveVUs:    int(s.activeVUs.Load()),
		TargetVUs:    s.config.TargetAt(elapsed),
		Iterations:   s.iterations.Load(),
		CurrentStage: s.config.stageIndexAt(elapsed),
		TotalStages:  len(s.config.Stages),
	}
}

// ActiveVUs returns the number of live, non-draining VUs.
func (s *Scheduler) ActiveVUs() int {
	return int(s.activeVUs.Load())
}

// Iterations returns the number of completed iterations across all VUs.
func (s *Scheduler) Iterations() int64 {
	return s.iterations.Load()
}
