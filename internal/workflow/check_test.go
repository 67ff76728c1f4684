package workflow

import (
	"net/http"
	"testing"
)

func TestStatusChecks(t *testing.T) {
	resp := &Response{Status: 201}

	if !StatusIs(200, 201).Fn(resp) {
		t.Error("StatusIs(200, 201) should pass for 201")
	}
	if StatusIs(200).Fn(resp) {
		t.Error("StatusIs(200) should fail for 201")
	}
	if !StatusBetween(200, 299).Fn(resp) {
		t.Error("StatusBetween(200, 299) should pass for 201")
	}
	if !StatusSuccess().Fn(resp) {
		t.Error("StatusSuccess() should pass for 201")
	}
	if StatusSuccess().Fn(&Response{Status: 301}) {
		t.Error("StatusSuccess() should fail for 301")
	}
}

func TestBodyContains(t *testing.T) {
	resp := &Response{Body: []byte(`{"status":"available"}`)}

	if !BodyContains("available").Fn(resp) {
		t.Error("should find substring")
	}
	if BodyContains("sold").Fn(resp) {
		t.Error("should not find absent substring")
	}
}

func TestJSONPathChecks(t *testing.T) {
	resp := &Response{Body: []byte(`{"listing":{"id":"L-1","price":1200},"tags":["a","b"]}`)}

	if !JSONPathExists("listing.id").Fn(resp) {
		t.Error("listing.id should exist")
	}
	if JSONPathExists("listing.owner").Fn(resp) {
		t.Error("listing.owner should not exist")
	}
	if !JSONPathEquals("listing.price", "1200").Fn(resp) {
		t.Error("listing.price should equal 1200")
	}
	if JSONPathEquals("listing.price", "999").Fn(resp) {
		t.Error("listing.price should not equal 999")
	}
	if !JSONPathExists("tags.1").Fn(resp) {
		t.Error("tags.1 should exist")
	}
	if JSONPathExists("anything").Fn(&Response{Body: []byte("not json")}) {
		t.Error("non-JSON body should fail path checks")
	}
}

func TestLatencyBelow(t *testing.T) {
	if !LatencyBelow(100).Fn(&Response{LatencyMs: 99}) {
		t.Error("99ms should pass a 100ms bound")
	}
	if LatencyBelow(100).Fn(&Response{LatencyMs: 100}) {
		t.Error("bound is exclusive")
	}
}

func TestMatchesSchema(t *testing.T) {
	schema, err := CompileSchema("listing.json", `{
		"type": "object",
		"required": ["id", "price"],
		"properties": {
			"id": {"type": "string"},
			"price": {"type": "number"}
		}
	}`)
	if err != nil {
		t.Fatalf("CompileSchema() error = %v", err)
	}
	check := MatchesSchema(schema)

	if !check.Fn(&Response{Body: []byte(`{"id":"L-1","price":1200}`)}) {
		t.Error("valid document should pass")
	}
	if check.Fn(&Response{Body: []byte(`{"id":"L-1"}`)}) {
		t.Error("missing required field should fail")
	}
	if check.Fn(&Response{Body: []byte(`{"id":1,"price":1200}`)}) {
		t.Error("wrong type should fail")
	}
	if check.Fn(&Response{Body: []byte("not json")}) {
		t.Error("unparseable body should fail")
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	if _, err := CompileSchema("bad.json", `{"type": 42}`); err == nil {
		t.Error("invalid schema should fail to compile")
	}
	if _, err := CompileSchema("bad.json", `not json`); err == nil {
		t.Error("non-JSON schema should fail to compile")
	}
}

func TestExtract(t *testing.T) {
	resp := &Response{
		Status: 200,
		Body:   []byte(`{"token":"abc","n":3,"none":null,"items":[{"id":"L-1"}]}`),
		Headers: http.Header{
			"X-Request-Id": []string{"r-9"},
		},
	}

	tests := []struct {
		name   string
		ex     Extractor
		want   string
		wantOK bool
	}{
		{name: "body string", ex: Extractor{Key: "t", Source: SourceBody, Path: "token"}, want: "abc", wantOK: true},
		{name: "body number as string", ex: Extractor{Key: "n", Source: SourceBody, Path: "n"}, want: "3", wantOK: true},
		{name: "body nested", ex: Extractor{Key: "id", Source: SourceBody, Path: "items.0.id"}, want: "L-1", wantOK: true},
		{name: "body missing", ex: Extractor{Key: "x", Source: SourceBody, Path: "nope"}, wantOK: false},
		{name: "body null is absent", ex: Extractor{Key: "x", Source: SourceBody, Path: "none"}, wantOK: false},
		{name: "header", ex: Extractor{Key: "rid", Source: SourceHeader, Path: "X-Request-Id"}, want: "r-9", wantOK: true},
		{name: "header missing", ex: Extractor{Key: "x", Source: SourceHeader, Path: "X-Nope"}, wantOK: false},
		{name: "status", ex: Extractor{Key: "s", Source: SourceStatus}, want: "200", wantOK: true},
		{name: "unknown source", ex: Extractor{Key: "x", Source: "cookie"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.ex.extract(resp)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_NilHeaders(t *testing.T) {
	ex := Extractor{Key: "x", Source: SourceHeader, Path: "X-Id"}
	if _, ok := ex.extract(&Response{}); ok {
		t.Error("nil headers should yield absent")
	}
}
