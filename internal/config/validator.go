package config

import (
	"fmt"
	"strings"

	"github.com/stampede-load/stampede/internal/metrics"
	"github.com/stampede-load/stampede/internal/threshold"
	"github.com/stampede-load/stampede/internal/workflow"
)

// ValidationError is one configuration problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors collects every problem found in one pass, so a user can
// fix them all at once.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any error was collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Validate checks the whole configuration and fails fast before the run
// starts; nothing here is recoverable mid-run.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	c.validateScenario(errs)
	c.validateSteps(errs)
	c.validateThresholds(errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (c *RunConfig) validateScenario(errs *ValidationErrors) {
	sc := &c.Scenario

	if sc.StartVUs < 0 {
		errs.Add("scenario.startVUs", "must be non-negative")
	}
	if len(sc.Stages) == 0 {
		errs.Add("scenario.stages", "at least one stage is required")
	}
	var total Duration
	for i, st := range sc.Stages {
		prefix := fmt.Sprintf("scenario.stages[%d]", i)
		if st.Duration < 0 {
			errs.Add(prefix+".duration", "must be non-negative")
		}
		if st.Target < 0 {
			errs.Add(prefix+".target", "must be non-negative")
		}
		total += st.Duration
	}
	if len(sc.Stages) > 0 && total <= 0 {
		errs.Add("scenario.stages", "total duration must be positive")
	}

	if sc.Ramp != "" && sc.Ramp != "linear" && sc.Ramp != "step" {
		errs.Add("scenario.ramp", fmt.Sprintf("must be 'linear' or 'step', got %q", sc.Ramp))
	}

	if tt := sc.ThinkTime; tt != nil {
		switch tt.Type {
		case "", "none":
		case "constant":
			if tt.Duration <= 0 {
				errs.Add("scenario.thinkTime.duration", "must be positive for constant think time")
			}
		case "uniform":
			if tt.Min < 0 {
				errs.Add("scenario.thinkTime.min", "must be non-negative")
			}
			if tt.Max < tt.Min {
				errs.Add("scenario.thinkTime.max", "must be >= min")
			}
		default:
			errs.Add("scenario.thinkTime.type", fmt.Sprintf("unknown type %q", tt.Type))
		}
	}
}

func (c *RunConfig) validateSteps(errs *ValidationErrors) {
	if len(c.Steps) == 0 {
		errs.Add("steps", "at least one step is required")
		return
	}

	seen := make(map[string]bool, len(c.Steps))
	for i, st := range c.Steps {
		prefix := fmt.Sprintf("steps[%d]", i)

		if st.Name == "" {
			errs.Add(prefix+".name", "name is required")
		} else if seen[st.Name] {
			errs.Add(prefix+".name", fmt.Sprintf("duplicate step name %q", st.Name))
		}
		seen[st.Name] = true

		if st.URL == "" {
			errs.Add(prefix+".url", "url is required")
		}
		if st.Method != "" && !validMethods[strings.ToUpper(st.Method)] {
			errs.Add(prefix+".method", fmt.Sprintf("invalid HTTP method %q", st.Method))
		}
		for j, r := range st.Requires {
			if r == "" {
				errs.Add(fmt.Sprintf("%s.requires[%d]", prefix, j), "key must not be empty")
			}
		}
		for j, ch := range st.Checks {
			validateCheck(fmt.Sprintf("%s.checks[%d]", prefix, j), &ch, errs)
		}
		for j, ex := range st.Extract {
			validateExtract(fmt.Sprintf("%s.extract[%d]", prefix, j), &ex, errs)
		}
	}
}

func validateCheck(prefix string, ch *CheckConfig, errs *ValidationErrors) {
	switch ch.Type {
	case "status":
		if len(ch.Status) == 0 {
			errs.Add(prefix+".status", "at least one status code is required")
		}
		for _, code := range ch.Status {
			if code < 100 || code > 599 {
				errs.Add(prefix+".status", fmt.Sprintf("invalid status code %d", code))
			}
		}
	case "body_contains":
		if ch.Contains == "" {
			errs.Add(prefix+".contains", "substring is required")
		}
	case "jsonpath":
		if ch.Path == "" {
			errs.Add(prefix+".path", "path is required")
		}
	case "schema":
		if ch.Schema == "" {
			errs.Add(prefix+".schema", "schema document is required")
		} else if _, err := workflow.CompileSchema("", ch.Schema); err != nil {
			errs.Add(prefix+".schema", err.Error())
		}
	case "latency":
		if ch.Max <= 0 {
			errs.Add(prefix+".max", "must be positive")
		}
	case "":
		errs.Add(prefix+".type", "check type is required")
	default:
		errs.Add(prefix+".type", fmt.Sprintf("unknown check type %q", ch.Type))
	}
}

func validateExtract(prefix string, ex *ExtractConfig, errs *ValidationErrors) {
	if ex.Name == "" {
		errs.Add(prefix+".name", "name is required")
	}
	switch ex.Source {
	case "body", "header":
		if ex.Path == "" {
			errs.Add(prefix+".path", "path is required")
		}
	case "status":
	case "":
		errs.Add(prefix+".source", "source is required")
	default:
		errs.Add(prefix+".source", fmt.Sprintf("unknown source %q", ex.Source))
	}
}

// validateThresholds checks that every threshold references a metric the run
// will actually register, and that its expressions fit the metric's kind.
// Referencing an unknown metric is a configuration error, caught here rather
// than at run end.
func (c *RunConfig) validateThresholds(errs *ValidationErrors) {
	kinds := c.metricKinds()

	for metricName, exprs := range c.Thresholds {
		kind, ok := kinds[metricName]
		if !ok {
			errs.Add("thresholds."+metricName,
				"references a metric no step or built-in will register")
			continue
		}
		for _, expr := range exprs {
			if err := threshold.ValidateExpression(expr, kind); err != nil {
				errs.Add("thresholds."+metricName, err.Error())
			}
		}
	}
}

// metricKinds returns every metric name this configuration will register,
// mapped to its kind.
func (c *RunConfig) metricKinds() map[string]metrics.Kind {
	kinds := map[string]metrics.Kind{
		workflow.MetricIterations:      metrics.KindCounter,
		workflow.MetricIterationErrors: metrics.KindCounter,
		workflow.MetricRequests:        metrics.KindCounter,
		workflow.MetricStepsSucceeded:  metrics.KindCounter,
	}
	for _, st := range c.Steps {
		if st.Name == "" {
			continue
		}
		kinds[st.Name] = metrics.KindRate
		kinds[workflow.StepDurationMetric(st.Name)] = metrics.KindTrend
	}
	return kinds
}
