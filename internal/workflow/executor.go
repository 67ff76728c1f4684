// Package workflow executes one scripted iteration: an ordered list of steps
// sharing a per-iteration state, with guards, response checks, and value
// extraction between steps.
package workflow

import (
	"context"
	"fmt"

	"github.com/stampede-load/stampede/internal/metrics"
)

// Built-in metric names recorded by the executor.
const (
	MetricIterations      = "iterations"
	MetricIterationErrors = "iteration_errors"
	MetricRequests        = "requests"
	MetricStepsSucceeded  = "steps_succeeded"
)

// StepDurationMetric returns the trend metric name for a step's latency.
func StepDurationMetric(stepName string) string {
	return stepName + "_duration"
}

// Executor runs iterations of a fixed step sequence.
//
// All step and built-in metrics are registered at construction, so a
// threshold referencing them can be validated before the run starts. The
// executor itself is stateless across iterations; it is safe for any number
// of VU workers to call RunIteration concurrently.
type Executor struct {
	steps     []*Step
	requester Requester

	stepRates  []*metrics.Rate
	stepTrends []*metrics.Trend

	iterations      *metrics.Counter
	iterationErrors *metrics.Counter
	requests        *metrics.Counter
	stepsSucceeded  *metrics.Counter
}

// NewExecutor validates the step list and registers every metric the
// executor will observe into the registry.
func NewExecutor(steps []*Step, requester Requester, registry *metrics.Registry) (*Executor, error) {
	if requester == nil {
		return nil, fmt.Errorf("requester is required")
	}
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	x := &Executor{
		steps:      steps,
		requester:  requester,
		stepRates:  make([]*metrics.Rate, len(steps)),
		stepTrends: make([]*metrics.Trend, len(steps)),
	}

	var err error
	for i, st := range steps {
		if x.stepRates[i], err = registry.Rate(st.Name); err != nil {
			return nil, err
		}
		if x.stepTrends[i], err = registry.Trend(StepDurationMetric(st.Name)); err != nil {
			return nil, err
		}
	}
	if x.iterations, err = registry.Counter(MetricIterations); err != nil {
		return nil, err
	}
	if x.iterationErrors, err = registry.Counter(MetricIterationErrors); err != nil {
		return nil, err
	}
	if x.requests, err = registry.Counter(MetricRequests); err != nil {
		return nil, err
	}
	if x.stepsSucceeded, err = registry.Counter(MetricStepsSucceeded); err != nil {
		return nil, err
	}

	return x, nil
}

// Steps returns the executor's step sequence.
func (x *Executor) Steps() []*Step {
	return x.steps
}

// RunIteration executes one complete iteration.
//
// Steps run strictly in declared order against a fresh State. A step whose
// guard returns false is skipped without recording anything. Any panic
// escaping step execution is caught here, counted as a failed iteration,
// and never propagates to the worker loop.
func (x *Executor) RunIteration(ctx context.Context) {
	x.iterations.Inc()

	defer func() {
		if r := recover(); r != nil {
			x.iterationErrors.Inc()
		}
	}()

	state := NewState()
	for i, st := range x.steps {
		if ctx.Err() != nil {
			return
		}
		if st.Guard != nil && !st.Guard(state) {
			continue
		}
		x.runStep(ctx, i, st, state)
	}
}

func (x *Executor) runStep(ctx context.Context, idx int, st *Step, state *State) {
	req := st.build(state)
	resp, err := x.requester.Send(ctx, req)
	x.requests.Inc()

	if resp == nil {
		resp = &Response{}
	}

	success := err == nil && x.checksPass(st, resp)

	x.stepRates[idx].Observe(success)
	x.stepTrends[idx].Observe(resp.LatencyMs)

	if !success {
		return
	}
	x.stepsSucceeded.Inc()
	for _, ex := range st.Extract {
		if v, ok := ex.extract(resp); ok {
			state.Set(ex.Key, v)
		}
	}
}

// checksPass evaluates the conjunction of a step's checks. A step without
// declared checks succeeds on any status below 400.
func (x *Executor) checksPass(st *Step, resp *Response) bool {
	if len(st.Checks) == 0 {
		return resp.Status >= 100 && resp.Status < 400
	}
	for _, c := range st.Checks {
		if !c.Fn(resp) {
			return false
		}
	}
	return true
}
