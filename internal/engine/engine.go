// Package engine wires configuration, the metric registry, the workflow
// executor, and the VU scheduler into one run, and turns the outcome into a
// RunResult.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stampede-load/stampede/internal/config"
	"github.com/stampede-load/stampede/internal/httpclient"
	"github.com/stampede-load/stampede/internal/metrics"
	"github.com/stampede-load/stampede/internal/report"
	"github.com/stampede-load/stampede/internal/scheduler"
	"github.com/stampede-load/stampede/internal/threshold"
	"github.com/stampede-load/stampede/internal/workflow"
)

// Engine orchestrates one load-test run.
type Engine struct {
	config    *config.RunConfig
	requester workflow.Requester
	client    *httpclient.Client

	mu        sync.RWMutex
	scheduler *scheduler.Scheduler
	registry  *metrics.Registry
	running   bool
}

// New creates an engine with an HTTP requester built from the config's
// settings.
func New(cfg *config.RunConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientConfig := httpclient.DefaultConfig()
	clientConfig.Timeout = cfg.Settings.Timeout.GetDuration(30 * time.Second)
	clientConfig.MaxIdleConnsPerHost = cfg.Settings.MaxIdleConnsPerHost
	clientConfig.MaxConnsPerHost = cfg.Settings.MaxConnsPerHost
	clientConfig.InsecureSkipVerify = cfg.Settings.InsecureSkipVerify

	client := httpclient.New(clientConfig, cfg.Settings.Headers)
	return &Engine{config: cfg, requester: client, client: client}, nil
}

// NewWithRequester creates an engine with an injected request capability.
// Used by tests and by callers that bring their own transport.
func NewWithRequester(cfg *config.RunConfig, requester workflow.Requester) (*Engine, error) {
	if requester == nil {
		return nil, fmt.Errorf("requester is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Engine{config: cfg, requester: requester}, nil
}

// Run executes the configured scenario and blocks until the ramp profile
// finishes and workers drain. It always returns a RunResult when the run
// started, even if iterations or thresholds failed; the error is reserved
// for the run not completing (cancellation, double start).
func (e *Engine) Run(ctx context.Context) (*report.RunResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	registry := metrics.NewRegistry()

	steps, err := BuildSteps(e.config)
	if err != nil {
		return nil, err
	}
	exec, err := workflow.NewExecutor(steps, e.requester, registry)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(schedulerConfig(&e.config.Scenario), exec.RunIteration)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.scheduler = sched
	e.registry = registry
	e.mu.Unlock()

	start := registry.StartTime()
	runErr := sched.Run(ctx)

	if e.client != nil {
		e.client.Close()
	}

	snap := registry.Snapshot()
	results, passed := threshold.Evaluate(snap, e.thresholds())
	result := report.Build(e.config.Name, snap, results, passed, start, time.Now())

	return result, runErr
}

// IsRunning reports whether a run is in flight.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stats returns live scheduler progress, or the zero value before the run
// starts.
func (e *Engine) Stats() scheduler.Stats {
	e.mu.RLock()
	sched := e.scheduler
	e.mu.RUnlock()
	if sched == nil {
		return scheduler.Stats{}
	}
	return sched.Stats()
}

// Snapshot returns the current metric aggregates, or nil before the run
// starts.
func (e *Engine) Snapshot() *metrics.Snapshot {
	e.mu.RLock()
	registry := e.registry
	e.mu.RUnlock()
	if registry == nil {
		return nil
	}
	return registry.Snapshot()
}

// thresholds flattens the config's threshold map into a stable order.
func (e *Engine) thresholds() []threshold.Threshold {
	names := make([]string, 0, len(e.config.Thresholds))
	for name := range e.config.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []threshold.Threshold
	for _, name := range names {
		for _, expr := range e.config.Thresholds[name] {
			out = append(out, threshold.Threshold{Metric: name, Expression: expr})
		}
	}
	return out
}

// schedulerConfig translates the scenario section into a scheduler profile.
func schedulerConfig(sc *config.ScenarioConfig) scheduler.Config {
	stages := make([]scheduler.Stage, len(sc.Stages))
	for i, st := range sc.Stages {
		stages[i] = scheduler.Stage{
			Duration: time.Duration(st.Duration),
			Target:   st.Target,
		}
	}

	ramp := scheduler.RampLinear
	if sc.Ramp == "step" {
		ramp = scheduler.RampStep
	}

	return scheduler.Config{
		StartVUs:         sc.StartVUs,
		Stages:           stages,
		GracefulRampDown: time.Duration(sc.GracefulRampDown),
		ThinkTime:        thinkTimePolicy(sc.ThinkTime),
		Ramp:             ramp,
	}
}

func thinkTimePolicy(tt *config.ThinkTimeConfig) scheduler.ThinkTime {
	if tt == nil {
		return scheduler.NoThinkTime()
	}
	switch tt.Type {
	case "constant":
		return scheduler.ConstantThinkTime(time.Duration(tt.Duration))
	case "uniform":
		return scheduler.UniformThinkTime(time.Duration(tt.Min), time.Duration(tt.Max))
	default:
		return scheduler.NoThinkTime()
	}
}
