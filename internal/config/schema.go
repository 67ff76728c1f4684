// Package config provides parsing and validation of run configuration files.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig is the root configuration for one load-test run.
//
// Example YAML:
//
//	name: "listing search soak"
//	settings:
//	  baseUrl: "https://api.example.com"
//	  timeout: 10s
//	scenario:
//	  startVUs: 0
//	  stages:
//	    - duration: 30s
//	      target: 10
//	    - duration: 2m
//	      target: 10
//	  gracefulRampDown: 15s
//	  thinkTime:
//	    type: uniform
//	    min: 500ms
//	    max: 2s
//	steps:
//	  - name: login
//	    method: POST
//	    url: "{{baseUrl}}/auth/login"
//	    body: '{"user":"load","password":"load"}'
//	    checks:
//	      - type: status
//	        status: [200]
//	    extract:
//	      - name: token
//	        source: body
//	        path: token
//	thresholds:
//	  login_duration: ["p95 < 800ms"]
//	  login: ["rate > 0.99"]
type RunConfig struct {
	Name string `yaml:"name" json:"name"`

	Settings Settings `yaml:"settings,omitempty" json:"settings,omitempty"`

	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`

	Steps []StepConfig `yaml:"steps" json:"steps"`

	// Thresholds are keyed by metric name; each entry is a list of
	// expressions that must all hold for the run to pass.
	Thresholds map[string][]string `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// Settings contains global HTTP settings.
type Settings struct {
	// BaseURL is exposed to step templates as {{baseUrl}}.
	BaseURL string `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`

	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	MaxIdleConnsPerHost int `yaml:"maxIdleConnsPerHost,omitempty" json:"maxIdleConnsPerHost,omitempty"`

	MaxConnsPerHost int `yaml:"maxConnsPerHost,omitempty" json:"maxConnsPerHost,omitempty"`

	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty" json:"insecureSkipVerify,omitempty"`

	// Headers are default headers applied to every request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ScenarioConfig is the ramp profile and pacing for the run.
type ScenarioConfig struct {
	StartVUs int `yaml:"startVUs,omitempty" json:"startVUs,omitempty"`

	Stages []StageConfig `yaml:"stages" json:"stages"`

	GracefulRampDown Duration `yaml:"gracefulRampDown,omitempty" json:"gracefulRampDown,omitempty"`

	ThinkTime *ThinkTimeConfig `yaml:"thinkTime,omitempty" json:"thinkTime,omitempty"`

	// Ramp is "linear" (default) or "step".
	Ramp string `yaml:"ramp,omitempty" json:"ramp,omitempty"`
}

// StageConfig is one time-boxed segment of the ramp profile.
type StageConfig struct {
	Duration Duration `yaml:"duration" json:"duration"`
	Target   int      `yaml:"target" json:"target"`
}

// ThinkTimeConfig controls the pause between iterations.
type ThinkTimeConfig struct {
	// Type is "none", "constant", or "uniform".
	Type string `yaml:"type" json:"type"`

	// Duration is the pause for constant think time.
	Duration Duration `yaml:"duration,omitempty" json:"duration,omitempty"`

	// Min and Max bound the pause for uniform think time.
	Min Duration `yaml:"min,omitempty" json:"min,omitempty"`
	Max Duration `yaml:"max,omitempty" json:"max,omitempty"`
}

// StepConfig defines one step of the iteration workflow.
type StepConfig struct {
	Name string `yaml:"name" json:"name"`

	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// URL supports {{key}} templates over iteration state plus {{baseUrl}}.
	URL string `yaml:"url" json:"url"`

	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	Body string `yaml:"body,omitempty" json:"body,omitempty"`

	// Requires lists state keys that must be present for the step to run;
	// earlier steps populate them via extract. Missing keys skip the step.
	Requires []string `yaml:"requires,omitempty" json:"requires,omitempty"`

	Checks []CheckConfig `yaml:"checks,omitempty" json:"checks,omitempty"`

	Extract []ExtractConfig `yaml:"extract,omitempty" json:"extract,omitempty"`
}

// CheckConfig declares one response check.
type CheckConfig struct {
	// Type is "status", "body_contains", "jsonpath", "schema", or "latency".
	Type string `yaml:"type" json:"type"`

	// Status lists acceptable status codes for "status".
	Status []int `yaml:"status,omitempty" json:"status,omitempty"`

	// Contains is the substring for "body_contains".
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`

	// Path is the gjson path for "jsonpath".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Equals, when set with "jsonpath", requires the path value to match;
	// otherwise existence suffices.
	Equals string `yaml:"equals,omitempty" json:"equals,omitempty"`

	// Schema is an inline JSON Schema document for "schema".
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`

	// Max bounds the exchange latency for "latency".
	Max Duration `yaml:"max,omitempty" json:"max,omitempty"`
}

// ExtractConfig declares one state value pulled from a response.
type ExtractConfig struct {
	Name string `yaml:"name" json:"name"`

	// Source is "body", "header", or "status".
	Source string `yaml:"source" json:"source"`

	// Path is the gjson path for body, or the header name.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

// GetDuration returns the duration or a default if zero.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
