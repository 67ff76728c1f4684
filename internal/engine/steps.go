package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/stampede-load/stampede/internal/config"
	"github.com/stampede-load/stampede/internal/workflow"
)

// BuildSteps translates the configured step list into workflow steps:
// guards from required state keys, checks and extractors from their
// declarations, and {{baseUrl}} resolved once up front. JSON Schemas
// compile here, not per response.
func BuildSteps(cfg *config.RunConfig) ([]*workflow.Step, error) {
	steps := make([]*workflow.Step, 0, len(cfg.Steps))
	for i := range cfg.Steps {
		st, err := buildStep(&cfg.Steps[i], cfg.Settings.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", cfg.Steps[i].Name, err)
		}
		steps = append(steps, st)
	}
	return steps, nil
}

func buildStep(sc *config.StepConfig, baseURL string) (*workflow.Step, error) {
	step := &workflow.Step{
		Name:   sc.Name,
		Method: strings.ToUpper(sc.Method),
		URL:    resolveBaseURL(sc.URL, baseURL),
		Body:   resolveBaseURL(sc.Body, baseURL),
	}
	if len(sc.Headers) > 0 {
		step.Headers = make(map[string]string, len(sc.Headers))
		for k, v := range sc.Headers {
			step.Headers[k] = resolveBaseURL(v, baseURL)
		}
	}
	if len(sc.Requires) > 0 {
		step.Guard = workflow.RequireKeys(sc.Requires...)
	}

	for _, ch := range sc.Checks {
		check, err := buildCheck(&ch)
		if err != nil {
			return nil, err
		}
		step.Checks = append(step.Checks, check)
	}
	for _, ex := range sc.Extract {
		step.Extract = append(step.Extract, workflow.Extractor{
			Key:    ex.Name,
			Source: workflow.Source(ex.Source),
			Path:   ex.Path,
		})
	}
	return step, nil
}

func buildCheck(ch *config.CheckConfig) (workflow.Check, error) {
	switch ch.Type {
	case "status":
		return workflow.StatusIs(ch.Status...), nil
	case "body_contains":
		return workflow.BodyContains(ch.Contains), nil
	case "jsonpath":
		if ch.Equals != "" {
			return workflow.JSONPathEquals(ch.Path, ch.Equals), nil
		}
		return workflow.JSONPathExists(ch.Path), nil
	case "schema":
		schema, err := workflow.CompileSchema("", ch.Schema)
		if err != nil {
			return workflow.Check{}, err
		}
		return workflow.MatchesSchema(schema), nil
	case "latency":
		maxMs := float64(time.Duration(ch.Max)) / float64(time.Millisecond)
		return workflow.LatencyBelow(maxMs), nil
	default:
		return workflow.Check{}, fmt.Errorf("unknown check type %q", ch.Type)
	}
}

// resolveBaseURL substitutes the {{baseUrl}} placeholder. Other placeholders
// stay for per-iteration state resolution.
func resolveBaseURL(s, baseURL string) string {
	if baseURL == "" {
		return s
	}
	s = strings.ReplaceAll(s, "{{baseUrl}}", baseURL)
	return strings.ReplaceAll(s, "{{baseURL}}", baseURL)
}
