package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		StartVUs: 1,
		Stages:   []Stage{{Duration: time.Second, Target: 5}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		config Config
	}{
		{name: "no stages", config: Config{StartVUs: 1}},
		{name: "negative startVUs", config: Config{StartVUs: -1, Stages: []Stage{{Duration: time.Second, Target: 1}}}},
		{name: "negative target", config: Config{Stages: []Stage{{Duration: time.Second, Target: -3}}}},
		{name: "negative duration", config: Config{Stages: []Stage{{Duration: -time.Second, Target: 1}}}},
		{name: "zero total duration", config: Config{Stages: []Stage{{Duration: 0, Target: 5}}}},
		{name: "negative grace", config: Config{Stages: []Stage{{Duration: time.Second, Target: 1}}, GracefulRampDown: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestConfig_TargetAt_Linear(t *testing.T) {
	c := Config{
		StartVUs: 0,
		Stages: []Stage{
			{Duration: 10 * time.Second, Target: 10}, // ramp up
			{Duration: 10 * time.Second, Target: 10}, // hold
			{Duration: 10 * time.Second, Target: 0},  // ramp down
		},
	}

	tests := []struct {
		at   time.Duration
		want int
	}{
		{at: 0, want: 0},
		{at: 5 * time.Second, want: 5},
		{at: 9 * time.Second, want: 9},
		{at: 10 * time.Second, want: 10},
		{at: 15 * time.Second, want: 10},
		{at: 20 * time.Second, want: 10},
		{at: 25 * time.Second, want: 5},
		{at: 29 * time.Second, want: 1},
		{at: 30 * time.Second, want: 0},
		{at: time.Hour, want: 0}, // past the end: last target
	}
	for _, tt := range tests {
		if got := c.TargetAt(tt.at); got != tt.want {
			t.Errorf("TargetAt(%s) = %d, want %d", tt.at, got, tt.want)
		}
	}
}

func TestConfig_TargetAt_NonzeroStart(t *testing.T) {
	c := Config{
		StartVUs: 4,
		Stages:   []Stage{{Duration: 10 * time.Second, Target: 8}},
	}
	if got := c.TargetAt(0); got != 4 {
		t.Errorf("TargetAt(0) = %d, want startVUs 4", got)
	}
	if got := c.TargetAt(5 * time.Second); got != 6 {
		t.Errorf("TargetAt(5s) = %d, want midpoint 6", got)
	}
}

func TestConfig_TargetAt_Step(t *testing.T) {
	c := Config{
		StartVUs: 0,
		Ramp:     RampStep,
		Stages: []Stage{
			{Duration: 10 * time.Second, Target: 10},
			{Duration: 10 * time.Second, Target: 2},
		},
	}
	// Step mode jumps immediately to the stage target.
	if got := c.TargetAt(1 * time.Second); got != 10 {
		t.Errorf("TargetAt(1s) = %d, want 10", got)
	}
	if got := c.TargetAt(11 * time.Second); got != 2 {
		t.Errorf("TargetAt(11s) = %d, want 2", got)
	}
}

func TestConfig_TargetAt_ZeroDurationStageJumps(t *testing.T) {
	c := Config{
		Stages: []Stage{
			{Duration: 0, Target: 7},
			{Duration: 10 * time.Second, Target: 7},
		},
	}
	if got := c.TargetAt(0); got != 7 {
		t.Errorf("TargetAt(0) = %d, want immediate jump to 7", got)
	}
}

func TestConfig_TotalDuration(t *testing.T) {
	c := Config{Stages: []Stage{
		{Duration: 3 * time.Second},
		{Duration: 7 * time.Second},
	}}
	if got := c.TotalDuration(); got != 10*time.Second {
		t.Errorf("TotalDuration() = %s, want 10s", got)
	}
}

func TestNew_Validation(t *testing.T) {
	cfg := Config{Stages: []Stage{{Duration: time.Second, Target: 1}}}
	if _, err := New(cfg, nil); err == nil {
		t.Error("nil iteration function should fail")
	}
	if _, err := New(Config{}, func(context.Context) {}); err == nil {
		t.Error("invalid config should fail")
	}
}

func TestScheduler_RunsIterations(t *testing.T) {
	var count atomic.Int64
	cfg := Config{
		Stages:           []Stage{{Duration: 300 * time.Millisecond, Target: 4}},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: time.Second,
	}
	s, err := New(cfg, func(ctx context.Context) {
		count.Add(1)
		time.Sleep(5 * time.Millisecond)
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if count.Load() == 0 {
		t.Error("no iterations ran")
	}
	if s.Iterations() != count.Load() {
		t.Errorf("Iterations() = %d, want %d", s.Iterations(), count.Load())
	}
	if got := s.ActiveVUs(); got != 0 {
		t.Errorf("ActiveVUs() after run = %d, want 0", got)
	}
}

func TestScheduler_ReachesTarget(t *testing.T) {
	const target = 6

	var peak atomic.Int32
	var live atomic.Int32
	cfg := Config{
		StartVUs:         target, // flat profile: all VUs from t=0
		Stages:           []Stage{{Duration: 400 * time.Millisecond, Target: target}},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: time.Second,
	}
	s, err := New(cfg, func(ctx context.Context) {
		n := live.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		live.Add(-1)
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := peak.Load(); got != target {
		t.Errorf("peak concurrency = %d, want %d", got, target)
	}
}

func TestScheduler_DrainedIterationNotAborted(t *testing.T) {
	var started, finished atomic.Int64
	cfg := Config{
		StartVUs:         2,
		Stages:           []Stage{{Duration: 150 * time.Millisecond, Target: 2}},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: 2 * time.Second,
	}
	s, err := New(cfg, func(ctx context.Context) {
		started.Add(1)
		// Longer than the remaining profile: finishes inside the grace
		// period, never force-cancelled.
		time.Sleep(100 * time.Millisecond)
		finished.Add(1)
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if started.Load() != finished.Load() {
		t.Errorf("started %d iterations but finished %d; draining must let the current iteration complete",
			started.Load(), finished.Load())
	}
}

func TestScheduler_GraceExpiryCancelsIterations(t *testing.T) {
	cancelled := make(chan struct{})
	cfg := Config{
		StartVUs:         1,
		Stages:           []Stage{{Duration: 50 * time.Millisecond, Target: 1}},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: 50 * time.Millisecond,
	}
	s, err := New(cfg, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			select {
			case <-cancelled:
			default:
				close(cancelled)
			}
		case <-time.After(10 * time.Second):
		}
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return; grace expiry must cancel stuck iterations")
	}
	select {
	case <-cancelled:
	default:
		t.Error("stuck iteration never saw cancellation")
	}
}

func TestScheduler_ExternalCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		StartVUs:         2,
		Stages:           []Stage{{Duration: 10 * time.Second, Target: 2}},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: time.Second,
	}
	s, err := New(cfg, func(ctx context.Context) {
		time.Sleep(5 * time.Millisecond)
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = s.Run(ctx)
	if err != context.Canceled {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run() took %s after cancel, want prompt shutdown", elapsed)
	}
}

func TestScheduler_DoubleRunRejected(t *testing.T) {
	cfg := Config{
		StartVUs:         1,
		Stages:           []Stage{{Duration: 300 * time.Millisecond, Target: 1}},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: time.Second,
	}
	s, err := New(cfg, func(ctx context.Context) { time.Sleep(time.Millisecond) })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	if err := s.Run(context.Background()); err == nil {
		t.Error("second Run() while in flight should fail")
	}
	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}
}

func TestRunVU_NoIterationOnDrainingWorker(t *testing.T) {
	var count atomic.Int64
	cfg := Config{
		Stages:           []Stage{{Duration: time.Second, Target: 1}},
		GracefulRampDown: time.Second,
	}
	s, err := New(cfg, func(context.Context) { count.Add(1) })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Drain marked the state but the worker has not yet observed stopCh:
	// the Idle to Running transition must fail and no iteration may start.
	vu := newVU(1)
	vu.state.Store(int32(VUStateDraining))
	s.wg.Add(1)
	s.runVU(context.Background(), vu)

	if count.Load() != 0 {
		t.Errorf("iterations on a draining worker = %d, want 0", count.Load())
	}
	if vu.State() != VUStateStopped {
		t.Errorf("State() = %s, want stopped", vu.State())
	}
}

func TestScheduler_Stats(t *testing.T) {
	cfg := Config{
		StartVUs: 2,
		Stages: []Stage{
			{Duration: 200 * time.Millisecond, Target: 2},
			{Duration: 200 * time.Millisecond, Target: 0},
		},
		TickInterval:     20 * time.Millisecond,
		GracefulRampDown: time.Second,
	}
	s, err := New(cfg, func(ctx context.Context) { time.Sleep(5 * time.Millisecond) })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	statsDone := make(chan Stats, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		statsDone <- s.Stats()
	}()

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mid := <-statsDone
	if mid.TotalStages != 2 {
		t.Errorf("TotalStages = %d, want 2", mid.TotalStages)
	}
	if mid.CurrentStage != 0 {
		t.Errorf("CurrentStage at 100ms = %d, want 0", mid.CurrentStage)
	}
	if mid.TargetVUs != 2 {
		t.Errorf("TargetVUs mid-run = %d, want 2", mid.TargetVUs)
	}
	if mid.Elapsed <= 0 {
		t.Error("Elapsed should be positive mid-run")
	}
}
