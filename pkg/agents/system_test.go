package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/condotto-ai/condotto/pkg/clients"
	"github.com/condotto-ai/condotto/pkg/metrics"
	"github.com/condotto-ai/condotto/pkg/types"
)

// fakeLLM scripts a Client for agent tests. It records every prompt it sees
// and answers with a canned prefix.
type fakeLLM struct {
	model   string
	prompts []string
	reply   func(prompt string) *types.Response
	err     error
}

func (f *fakeLLM) Invoke(ctx context.Context, input []types.Block, opts ...clients.InvokeOption) (*types.Response, error) {
	prompt := types.JoinText(input)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply(prompt), nil
	}
	return &types.Response{
		Content: types.Text("handled: " + prompt), StopReason: "stop",
		PromptTokens: 5, CompletionTokens: 3,
	}, nil
}

func (f *fakeLLM) StreamInvoke(ctx context.Context, input []types.Block, fn clients.StreamFunc, opts ...clients.InvokeOption) (*types.Response, error) {
	return f.Invoke(ctx, input, opts...)
}

func (f *fakeLLM) StructuredResponse(ctx context.Context, input []types.Block, target any, opts ...clients.InvokeOption) (*types.Response, error) {
	return f.Invoke(ctx, input, opts...)
}

func (f *fakeLLM) Provider() clients.Provider { return clients.ProviderOpenAI }
func (f *fakeLLM) Model() string              { return f.model }

func newFakeSystem(t *testing.T, fakes map[string]*fakeLLM, opts ...SystemOption) *System {
	t.Helper()
	i := 0
	names := []string{AgentMath, AgentData, AgentResearch, AgentCoordinator}
	sys, err := NewSystem(func(systemPrompt string) (clients.Client, error) {
		name := names[i]
		i++
		f, ok := fakes[name]
		if !ok {
			f = &fakeLLM{model: "fake-model"}
			fakes[name] = f
		}
		return f, nil
	}, opts...)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return sys
}

func TestAgentProcessTaskDrainsInbox(t *testing.T) {
	bus := NewBus()
	fake := &fakeLLM{model: "m"}
	agent := NewAgent("worker", "testing", fake, bus)

	bus.Publish("peer", "worker", "context from peer", "t1", MessageInfo)
	bus.Publish("peer", "other", "not for us", "t1", MessageInfo)

	result, err := agent.ProcessTask(context.Background(), "do the thing", "t1")
	if err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(fake.prompts) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(fake.prompts))
	}
	prompt := fake.prompts[0]
	if !strings.Contains(prompt, "do the thing") || !strings.Contains(prompt, "peer: context from peer") {
		t.Fatalf("inbox not folded into prompt: %q", prompt)
	}
	if !strings.HasPrefix(result, "handled:") {
		t.Fatalf("unexpected result: %q", result)
	}
	if got := bus.MessagesFor("worker"); len(got) != 0 {
		t.Fatalf("inbox not cleared: %+v", got)
	}
	if got := bus.MessagesFor("other"); len(got) != 1 {
		t.Fatalf("other receiver's messages disturbed")
	}
}

func TestAgentProcessTaskToolFallback(t *testing.T) {
	fake := &fakeLLM{model: "m", reply: func(string) *types.Response {
		return &types.Response{Content: []types.Block{
			types.ToolCallBlock{ID: "c1", Name: "calculator", Arguments: "{}"},
			types.ToolResultBlock{CallID: "c1", Name: "calculator", Content: `{"ok":true,"data":{"result":4}}`},
			types.TextBlock{Content: "   "},
		}}
	}}
	agent := NewAgent("worker", "testing", fake, NewBus())

	result, err := agent.ProcessTask(context.Background(), "calc", "t1")
	if err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if !strings.HasPrefix(result, "Completed operations:") || !strings.Contains(result, `"result":4`) {
		t.Fatalf("tool fallback missing: %q", result)
	}

	empty := &fakeLLM{model: "m", reply: func(string) *types.Response {
		return &types.Response{Content: types.Text("")}
	}}
	agent = NewAgent("worker", "testing", empty, NewBus())
	result, err = agent.ProcessTask(context.Background(), "noop", "t1")
	if err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if result != "Task processed without tool usage" {
		t.Fatalf("unexpected empty fallback: %q", result)
	}
}

func TestExecuteTaskKeywordRouting(t *testing.T) {
	fakes := map[string]*fakeLLM{}
	sys := newFakeSystem(t, fakes)

	results := sys.ExecuteTask(context.Background(),
		"Calculate the ROI and run a statistics analysis of the sales data")

	for _, key := range []string{"coordination_plan", "math_analysis", "data_analysis", "final_report"} {
		if _, ok := results[key]; !ok {
			t.Fatalf("missing result %q: %v", key, results)
		}
	}
	if _, ok := results["research_findings"]; ok {
		t.Fatalf("research agent should not have been routed: %v", results)
	}
	if len(fakes[AgentResearch].prompts) != 0 {
		t.Fatalf("research agent was invoked")
	}

	// Specialists reported to the coordinator, and the coordinator drained
	// those messages while writing the final report.
	coordPrompts := fakes[AgentCoordinator].prompts
	if len(coordPrompts) != 2 {
		t.Fatalf("expected 2 coordinator invocations, got %d", len(coordPrompts))
	}
	if !strings.Contains(coordPrompts[1], "math_analysis completed") {
		t.Fatalf("coordinator never saw the specialist reports: %q", coordPrompts[1])
	}
	if got := sys.Bus().MessagesFor(AgentCoordinator); len(got) != 0 {
		t.Fatalf("coordinator inbox not drained: %+v", got)
	}
}

func TestExecuteTaskDegradesOnAgentFailure(t *testing.T) {
	fakes := map[string]*fakeLLM{
		AgentMath: {model: "m", err: errors.New("provider down")},
	}
	sys := newFakeSystem(t, fakes)

	results := sys.ExecuteTask(context.Background(), "calculate 2+2")
	got, ok := results["math_analysis"]
	if !ok {
		t.Fatalf("failing specialist missing from results: %v", results)
	}
	if !strings.Contains(got, "error in MathExpert") {
		t.Fatalf("failure not folded into result: %q", got)
	}
	if _, ok := results["coordination_plan"]; !ok {
		t.Fatalf("task aborted instead of degrading: %v", results)
	}
}

func TestExecuteTaskDegradesWithoutBuiltinAgents(t *testing.T) {
	roster := []AgentSpec{{
		Name:           "Solver",
		Specialization: "General problem solving",
		SystemPrompt:   "You solve problems.",
	}}
	sys, err := newSystem(roster, func(string) (clients.Client, error) {
		return &fakeLLM{model: "fake-model"}, nil
	})
	if err != nil {
		t.Fatalf("newSystem: %v", err)
	}

	results := sys.ExecuteTask(context.Background(), "calculate 2+2")
	got, ok := results["coordination_plan"]
	if !ok {
		t.Fatalf("coordination plan missing from results: %v", results)
	}
	if !strings.Contains(got, "error in Coordinator") {
		t.Fatalf("missing coordinator not folded into result: %q", got)
	}

	analysis := sys.CollaborativeAnalysis(context.Background(), "10, 20, 30", "trends")
	for _, key := range []string{"data_analysis", "research_findings", "math_analysis", "synthesis"} {
		if got := analysis[key]; !strings.Contains(got, "agent not registered") {
			t.Fatalf("%s = %q, want missing-agent error", key, got)
		}
	}
}

func TestCollaborativeAnalysis(t *testing.T) {
	fakes := map[string]*fakeLLM{}
	sys := newFakeSystem(t, fakes)

	results := sys.CollaborativeAnalysis(context.Background(),
		"150,200,175,220", "growth trends in tech")

	for _, key := range []string{"data_analysis", "research_findings", "math_analysis", "synthesis"} {
		if _, ok := results[key]; !ok {
			t.Fatalf("missing result %q: %v", key, results)
		}
	}
	if len(fakes[AgentMath].prompts) != 1 {
		t.Fatalf("math expert not consulted for numeric data")
	}

	// Non-numeric data without a calculation hint skips the math step.
	fakes = map[string]*fakeLLM{}
	sys = newFakeSystem(t, fakes)
	results = sys.CollaborativeAnalysis(context.Background(), "qualitative notes", "team morale")
	if _, ok := results["math_analysis"]; ok {
		t.Fatalf("math step should have been skipped: %v", results)
	}
}

func TestSystemTracksUsage(t *testing.T) {
	tracker := metrics.NewTracker()
	fakes := map[string]*fakeLLM{}
	sys := newFakeSystem(t, fakes, WithSystemTracker(tracker))

	sys.ExecuteTask(context.Background(), "calculate something")
	if stats := tracker.Stats(); stats.Requests == 0 || stats.PromptTokens == 0 {
		t.Fatalf("usage not tracked: %+v", stats)
	}
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	roster := `agents:
  - name: Solver
    specialization: math
    system_prompt: You solve equations.
    tools: [calculator]
  - name: Librarian
    specialization: research
    system_prompt: You find facts.
    tools: [knowledge_search, report_builder]
`
	if err := os.WriteFile(path, []byte(roster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	specs, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(specs))
	}
	if specs[0].Name != "Solver" || len(specs[0].tools) != 1 || specs[0].tools[0].Name != "calculator" {
		t.Fatalf("unexpected first spec: %+v", specs[0])
	}
	if len(specs[1].tools) != 2 {
		t.Fatalf("second agent tools not resolved: %+v", specs[1])
	}
}

func TestLoadRosterRejectsUnknownTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	roster := `agents:
  - name: Broken
    system_prompt: x
    tools: [time_machine]
`
	if err := os.WriteFile(path, []byte(roster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if _, err := LoadRoster(path); err == nil || !strings.Contains(err.Error(), "time_machine") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestNewSystemFromRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	roster := `agents:
  - name: Solo
    specialization: everything
    system_prompt: You do it all.
    tools: [calculator]
`
	if err := os.WriteFile(path, []byte(roster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	var prompts []string
	sys, err := NewSystemFromRoster(path, func(systemPrompt string) (clients.Client, error) {
		prompts = append(prompts, systemPrompt)
		return &fakeLLM{model: "m"}, nil
	})
	if err != nil {
		t.Fatalf("NewSystemFromRoster: %v", err)
	}
	if got := sys.Agents(); len(got) != 1 || got[0] != "Solo" {
		t.Fatalf("unexpected roster: %v", got)
	}
	if len(prompts) != 1 || prompts[0] != "You do it all." {
		t.Fatalf("system prompt not passed to factory: %v", prompts)
	}
}
