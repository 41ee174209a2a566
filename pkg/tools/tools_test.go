// Tests for the registry envelope contract and the builtin tools.
package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeEnvelope(t *testing.T, payload string) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		t.Fatalf("envelope is not JSON: %v\n%s", err, payload)
	}
	return env
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	out, err := r.Execute(context.Background(), "nope", "{}")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	env := decodeEnvelope(t, out)
	if env["ok"] != false || !strings.Contains(env["error"].(string), "unknown tool") {
		t.Fatalf("unexpected envelope: %v", env)
	}
}

func TestRegistryExecuteMalformedArguments(t *testing.T) {
	r := NewRegistry(Calculator())
	out, err := r.Execute(context.Background(), "calculator", "{not json")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	env := decodeEnvelope(t, out)
	if env["ok"] != false {
		t.Fatalf("expected error envelope: %v", env)
	}
}

func TestRegistryExecuteCanceledContext(t *testing.T) {
	r := NewRegistry(Calculator())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := r.Execute(ctx, "calculator", `{"expression":"1+1"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	env := decodeEnvelope(t, out)
	if env["ok"] != false {
		t.Fatalf("expected error envelope after cancellation: %v", env)
	}
}

func TestRegistryOrderAndReplacement(t *testing.T) {
	r := NewRegistry(Calculator(), KnowledgeSearch())
	replacement := Calculator()
	replacement.Description = "replaced"
	r.Register(replacement)

	tools := r.Tools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "calculator" || tools[0].Description != "replaced" {
		t.Fatalf("replacement lost registration order: %+v", tools[0])
	}
}

func TestCalculatorExpressions(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"15 * 8 + 32", 152},
		{"(2 + 3) * 4", 20},
		{"-3 + 10", 7},
		{"2 ^ 3 ^ 2", 512},
		{"sqrt(16) + pi - pi", 4},
		{"pow(2, 10)", 1024},
		{"pow(sqrt(16), 2) + 1", 17},
		{"10 / 4", 2.5},
	}
	for _, tc := range cases {
		got, err := evalExpression(tc.expr)
		if err != nil {
			t.Fatalf("eval %q: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("eval %q = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestCalculatorRejectsBadInput(t *testing.T) {
	for _, expr := range []string{"1/0", "2 +", "import os", "1; 2", "foo(3)", "pow(2)", "pow(1, 2, 3)"} {
		if _, err := evalExpression(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestDataAnalysis(t *testing.T) {
	r := NewRegistry(DataAnalysis())
	ctx := context.Background()

	out, _ := r.Execute(ctx, "data_analysis", `{"data":"1200, 1350, 980, 1450"}`)
	env := decodeEnvelope(t, out)
	if env["ok"] != true {
		t.Fatalf("analysis failed: %v", env)
	}
	stats := env["data"].(map[string]any)
	if stats["count"] != float64(4) || stats["min"] != float64(980) || stats["max"] != float64(1450) {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if stats["median"] != float64(1275) {
		t.Fatalf("median = %v", stats["median"])
	}

	out, _ = r.Execute(ctx, "data_analysis", `{"data":"[1,2,3,4,5]","analysis":"advanced"}`)
	env = decodeEnvelope(t, out)
	stats = env["data"].(map[string]any)
	if stats["variance"] != float64(2.5) {
		t.Fatalf("variance = %v", stats["variance"])
	}

	out, _ = r.Execute(ctx, "data_analysis", `{"data":"one, two"}`)
	if env := decodeEnvelope(t, out); env["ok"] != false {
		t.Fatalf("non-numeric input must fail: %v", env)
	}
}

func TestFileManagerLifecycle(t *testing.T) {
	fm := NewFileManager()
	r := NewRegistry(fm.Tool())
	ctx := context.Background()

	out, _ := r.Execute(ctx, "file_manager", `{"command":"create","path":"docs/notes.md"}`)
	if env := decodeEnvelope(t, out); env["ok"] != true {
		t.Fatalf("create failed: %v", env)
	}

	out, _ = r.Execute(ctx, "file_manager", `{"command":"list","path":"docs"}`)
	env := decodeEnvelope(t, out)
	if env["ok"] != true || !strings.Contains(out, "notes.md") {
		t.Fatalf("list missing created file: %s", out)
	}

	out, _ = r.Execute(ctx, "file_manager", `{"command":"delete","path":"docs/notes.md"}`)
	if env := decodeEnvelope(t, out); env["ok"] != true {
		t.Fatalf("delete failed: %v", env)
	}

	out, _ = r.Execute(ctx, "file_manager", `{"command":"delete","path":"docs/notes.md"}`)
	if env := decodeEnvelope(t, out); env["ok"] != false {
		t.Fatalf("double delete must fail: %v", env)
	}
}

func TestKnowledgeSearchWholeWordMatch(t *testing.T) {
	r := NewRegistry(KnowledgeSearch())
	ctx := context.Background()

	out, _ := r.Execute(ctx, "knowledge_search", `{"query":"what is roi for a project","domain":"business"}`)
	env := decodeEnvelope(t, out)
	data := env["data"].(map[string]any)
	if !strings.Contains(data["result"].(string), "ROI") {
		t.Fatalf("expected ROI entry: %v", data)
	}

	// "ai" must not fire inside "explain".
	out, _ = r.Execute(ctx, "knowledge_search", `{"query":"explain nothing in particular"}`)
	env = decodeEnvelope(t, out)
	data = env["data"].(map[string]any)
	if !strings.Contains(data["result"].(string), "no entry found") {
		t.Fatalf("substring keyword fired spuriously: %v", data)
	}
}

func TestReportBuilderFormats(t *testing.T) {
	fixed := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	r := NewRegistry(ReportBuilderAt(fixed))
	ctx := context.Background()

	out, _ := r.Execute(ctx, "report_builder", `{"title":"Q2","content":"all good","format":"markdown"}`)
	env := decodeEnvelope(t, out)
	report := env["data"].(map[string]any)["report"].(string)
	if !strings.HasPrefix(report, "# Q2") || !strings.Contains(report, "2025-06-01 12:00:00") {
		t.Fatalf("unexpected markdown report: %q", report)
	}

	out, _ = r.Execute(ctx, "report_builder", `{"title":"Q2","content":"all good","format":"json"}`)
	env = decodeEnvelope(t, out)
	report = env["data"].(map[string]any)["report"].(string)
	var decoded map[string]string
	if err := json.Unmarshal([]byte(report), &decoded); err != nil || decoded["title"] != "Q2" {
		t.Fatalf("json report not parseable: %v %q", err, report)
	}

	out, _ = r.Execute(ctx, "report_builder", `{"title":"Q2","content":"x","format":"pdf"}`)
	if env := decodeEnvelope(t, out); env["ok"] != false {
		t.Fatalf("unsupported format must fail: %v", env)
	}
}
