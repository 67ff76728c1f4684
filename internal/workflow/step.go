package workflow

import (
	"fmt"
	"strings"
)

// Guard decides whether a step may run given the current iteration state.
// A step whose guard returns false is skipped: no request, no metrics.
type Guard func(*State) bool

// RequireKeys returns a guard that passes only when every key has been set
// by an earlier step.
func RequireKeys(keys ...string) Guard {
	return func(s *State) bool {
		return s.Has(keys...)
	}
}

// Step is a named unit of work inside an iteration.
//
// Method, URL, Headers, and Body support {{key}} placeholders resolved
// against the iteration state at execution time. Checks run against the
// response; the step succeeds only when the transport succeeded and every
// check passed. Extractors run on success and contribute values to the
// state for downstream guards and templates.
type Step struct {
	Name string

	Method  string
	URL     string
	Headers map[string]string
	Body    string

	// Guard may be nil, in which case the step always runs.
	Guard Guard

	Checks  []Check
	Extract []Extractor
}

// build resolves the step's templates against state and produces a Request.
func (st *Step) build(state *State) Request {
	req := Request{
		Method: st.Method,
		URL:    resolveTemplate(st.URL, state),
	}
	if req.Method == "" {
		req.Method = "GET"
	}
	if st.Body != "" {
		req.Body = []byte(resolveTemplate(st.Body, state))
	}
	if len(st.Headers) > 0 {
		req.Headers = make(map[string]string, len(st.Headers))
		for k, v := range st.Headers {
			req.Headers[k] = resolveTemplate(v, state)
		}
	}
	return req
}

// resolveTemplate replaces {{key}} placeholders with state values in one
// left-to-right pass. Unknown placeholders are left untouched. Substituted
// values are emitted as-is, never rescanned: state holds server-provided
// bytes, and a value that happens to contain placeholder syntax must not
// re-expand.
func resolveTemplate(input string, state *State) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	var b strings.Builder
	rest := input
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start
		key := strings.TrimSpace(rest[start+2 : end])
		if value, ok := state.Get(key); ok {
			b.WriteString(rest[:start])
			b.WriteString(value)
		} else {
			b.WriteString(rest[:end+2])
		}
		rest = rest[end+2:]
	}
}

// validateSteps checks structural invariants shared by every caller that
// assembles a step list.
func validateSteps(steps []*Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	seen := make(map[string]bool, len(steps))
	for i, st := range steps {
		if st.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("step %d: duplicate name %q", i, st.Name)
		}
		seen[st.Name] = true
		if st.URL == "" {
			return fmt.Errorf("step %q: url is required", st.Name)
		}
	}
	return nil
}
