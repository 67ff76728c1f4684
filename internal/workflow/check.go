package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Check is a named boolean predicate over a step's response. A step's
// success is the conjunction of all its checks.
type Check struct {
	Name string
	Fn   func(*Response) bool
}

// StatusIs passes when the response status is one of the given codes.
func StatusIs(codes ...int) Check {
	return Check{
		Name: fmt.Sprintf("status in %v", codes),
		Fn: func(resp *Response) bool {
			for _, c := range codes {
				if resp.Status == c {
					return true
				}
			}
			return false
		},
	}
}

// StatusBetween passes when min <= status <= max.
func StatusBetween(min, max int) Check {
	return Check{
		Name: fmt.Sprintf("status %d-%d", min, max),
		Fn: func(resp *Response) bool {
			return resp.Status >= min && resp.Status <= max
		},
	}
}

// StatusSuccess passes on any 2xx status.
func StatusSuccess() Check {
	return StatusBetween(200, 299)
}

// BodyContains passes when the response body contains the substring.
func BodyContains(sub string) Check {
	return Check{
		Name: fmt.Sprintf("body contains %q", sub),
		Fn: func(resp *Response) bool {
			return bytes.Contains(resp.Body, []byte(sub))
		},
	}
}

// JSONPathExists passes when the gjson path resolves to a value in the body.
func JSONPathExists(path string) Check {
	return Check{
		Name: fmt.Sprintf("json %s exists", path),
		Fn: func(resp *Response) bool {
			return gjson.GetBytes(resp.Body, path).Exists()
		},
	}
}

// JSONPathEquals passes when the gjson path resolves to the expected value
// (compared as strings).
func JSONPathEquals(path, want string) Check {
	return Check{
		Name: fmt.Sprintf("json %s == %s", path, want),
		Fn: func(resp *Response) bool {
			result := gjson.GetBytes(resp.Body, path)
			return result.Exists() && result.String() == want
		},
	}
}

// LatencyBelow passes when the exchange took less than maxMs milliseconds.
func LatencyBelow(maxMs float64) Check {
	return Check{
		Name: fmt.Sprintf("latency < %.0fms", maxMs),
		Fn: func(resp *Response) bool {
			return resp.LatencyMs < maxMs
		},
	}
}

// MatchesSchema passes when the response body is JSON valid against the
// compiled schema.
func MatchesSchema(schema *jsonschema.Schema) Check {
	return Check{
		Name: "body matches schema",
		Fn: func(resp *Response) bool {
			var data interface{}
			if err := json.Unmarshal(resp.Body, &data); err != nil {
				return false
			}
			return schema.Validate(data) == nil
		},
	}
}

// CompileSchema compiles an inline JSON Schema document for use with
// MatchesSchema. Compilation happens once at setup, not per response.
func CompileSchema(name, schemaJSON string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	resource := name
	if resource == "" {
		resource = "schema.json"
	}
	if err := compiler.AddResource(resource, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", resource, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", resource, err)
	}
	return schema, nil
}
