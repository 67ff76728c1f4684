package workflow

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// Source identifies where an extractor reads from.
type Source string

const (
	// SourceBody extracts a value from the JSON body via a gjson path.
	SourceBody Source = "body"

	// SourceHeader extracts a response header value; Path is the header name.
	SourceHeader Source = "header"

	// SourceStatus extracts the numeric status code as a string.
	SourceStatus Source = "status"
)

// Extractor pulls an optional value out of a response into the iteration
// state. Absence of the value (missing path, empty header) simply leaves the
// key unset; downstream guards read that as "do not run".
type Extractor struct {
	// Key is the state key to populate.
	Key string

	Source Source

	// Path is the gjson path for SourceBody or the header name for
	// SourceHeader. Unused for SourceStatus.
	Path string
}

// extract returns the value and whether one was present.
func (e Extractor) extract(resp *Response) (string, bool) {
	switch e.Source {
	case SourceBody:
		result := gjson.GetBytes(resp.Body, e.Path)
		if !result.Exists() || result.Type == gjson.Null {
			return "", false
		}
		return result.String(), true
	case SourceHeader:
		if resp.Headers == nil {
			return "", false
		}
		v := resp.Headers.Get(e.Path)
		return v, v != ""
	case SourceStatus:
		return strconv.Itoa(resp.Status), true
	default:
		return "", false
	}
}
