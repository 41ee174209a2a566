package schema

import (
	"testing"
)

type sentimentReport struct {
	Sentiment  string   `json:"sentiment" desc:"overall sentiment" required:"true" enum:"positive,negative,neutral"`
	Confidence float64  `json:"confidence" desc:"0.0 to 1.0" required:"true"`
	Emotions   []string `json:"emotions"`
	Notes      string   `json:"-"`
	internal   int
}

func TestOfStruct(t *testing.T) {
	s := Of[sentimentReport]()
	if s.Type != "object" {
		t.Fatalf("expected object, got %q", s.Type)
	}
	if _, ok := s.Properties["Notes"]; ok {
		t.Fatal("json:\"-\" field must be skipped")
	}
	if _, ok := s.Properties["internal"]; ok {
		t.Fatal("unexported field must be skipped")
	}
	sent := s.Properties["sentiment"]
	if sent == nil || sent.Type != "string" || len(sent.Enum) != 3 {
		t.Fatalf("unexpected sentiment schema: %+v", sent)
	}
	if sent.Description != "overall sentiment" {
		t.Fatalf("desc tag not applied: %q", sent.Description)
	}
	if s.Properties["confidence"].Type != "number" {
		t.Fatalf("expected number, got %q", s.Properties["confidence"].Type)
	}
	if s.Properties["emotions"].Type != "array" || s.Properties["emotions"].Items.Type != "string" {
		t.Fatalf("unexpected array schema: %+v", s.Properties["emotions"])
	}
	if len(s.Required) != 2 {
		t.Fatalf("expected 2 required fields, got %v", s.Required)
	}
}

func TestMapRendersJSONSchema(t *testing.T) {
	s := Object(map[string]*Schema{
		"query": String("search query"),
	}, "query")
	m := s.Map()
	if m["type"] != "object" {
		t.Fatalf("unexpected map: %v", m)
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing: %v", m)
	}
	if _, ok := props["query"]; !ok {
		t.Fatalf("query property missing: %v", props)
	}
	req, ok := m["required"].([]any)
	if !ok || len(req) != 1 || req[0] != "query" {
		t.Fatalf("required missing: %v", m["required"])
	}
}
