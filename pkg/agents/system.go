package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/condotto-ai/condotto/pkg/clients"
	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/metrics"
	"github.com/condotto-ai/condotto/pkg/tools"
)

// Built-in roster agent names.
const (
	AgentMath        = "MathExpert"
	AgentData        = "DataAnalyst"
	AgentResearch    = "ResearchAgent"
	AgentCoordinator = "Coordinator"
)

// ClientFactory builds a client for one agent given its system prompt. Each
// agent gets its own client so prompts stay isolated.
type ClientFactory func(systemPrompt string) (clients.Client, error)

// System is a set of named agents over a shared bus.
type System struct {
	bus     *Bus
	agents  map[string]*Agent
	order   []string
	log     logger.Logger
	tracker *metrics.Tracker
}

// SystemOption configures a System.
type SystemOption func(*System)

// WithSystemLogger sets the logger used by the system, its bus, and its
// agents.
func WithSystemLogger(l logger.Logger) SystemOption {
	return func(s *System) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSystemTracker records every agent's usage into tr.
func WithSystemTracker(tr *metrics.Tracker) SystemOption {
	return func(s *System) { s.tracker = tr }
}

// NewSystem builds a system with the built-in four-agent roster.
func NewSystem(newClient ClientFactory, opts ...SystemOption) (*System, error) {
	return newSystem(builtinRoster(), newClient, opts...)
}

func newSystem(roster []AgentSpec, newClient ClientFactory, opts ...SystemOption) (*System, error) {
	s := &System{
		agents: make(map[string]*Agent),
		log:    logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.bus = NewBus(WithBusLogger(s.log))

	for _, spec := range roster {
		client, err := newClient(spec.SystemPrompt)
		if err != nil {
			return nil, fmt.Errorf("create client for %s: %w", spec.Name, err)
		}
		agentOpts := []AgentOption{
			WithAgentTools(spec.tools...),
			WithAgentLogger(s.log),
		}
		if s.tracker != nil {
			agentOpts = append(agentOpts, WithAgentTracker(s.tracker))
		}
		s.agents[spec.Name] = NewAgent(spec.Name, spec.Specialization, client, s.bus, agentOpts...)
		s.order = append(s.order, spec.Name)
	}
	return s, nil
}

// Agent returns the named agent.
func (s *System) Agent(name string) (*Agent, bool) {
	a, ok := s.agents[name]
	return a, ok
}

// Agents returns agent names in roster order.
func (s *System) Agents() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Bus returns the shared message bus.
func (s *System) Bus() *Bus { return s.bus }

// routes maps task keywords to a specialist and the result key its output is
// stored under.
var routes = []struct {
	agent    string
	key      string
	keywords []string
}{
	{AgentMath, "math_analysis", []string{"calculate", "math", "formula"}},
	{AgentData, "data_analysis", []string{"data", "analysis", "statistics"}},
	{AgentResearch, "research_findings", []string{"search", "information", "research"}},
}

// ExecuteTask runs a task through the system: the coordinator drafts a plan,
// keyword-matched specialists work the task and report back to the
// coordinator, and when more than one result exists the coordinator writes a
// final report. A failing agent degrades to an error string in the results
// map so the rest of the task still completes.
func (s *System) ExecuteTask(ctx context.Context, description string) map[string]string {
	taskID := fmt.Sprintf("task_%d", s.bus.Len())
	results := make(map[string]string)
	lowered := strings.ToLower(description)

	results["coordination_plan"] = s.runNamed(ctx, AgentCoordinator,
		"Analyze this task and draft an execution plan: "+description, taskID)

	for _, route := range routes {
		if !containsAny(lowered, route.keywords) {
			continue
		}
		specialist, ok := s.agents[route.agent]
		if !ok {
			continue
		}
		result := s.runAgent(ctx, specialist, description, taskID)
		results[route.key] = result
		specialist.Send(AgentCoordinator,
			fmt.Sprintf("%s completed: %s", route.key, result), taskID, MessageResponse)
	}

	if len(results) > 1 {
		var sb strings.Builder
		sb.WriteString("Write a final report for the task ")
		fmt.Fprintf(&sb, "%q based on these results:\n", description)
		for _, route := range routes {
			if result, ok := results[route.key]; ok {
				fmt.Fprintf(&sb, "- %s: %s\n", route.key, truncate(result, 100))
			}
		}
		results["final_report"] = s.runNamed(ctx, AgentCoordinator, sb.String(), taskID)
	}
	return results
}

// CollaborativeAnalysis runs the fixed four-step collaboration: data
// analysis, topic research, calculations when the data looks numeric, and a
// coordinator synthesis.
func (s *System) CollaborativeAnalysis(ctx context.Context, data, topic string) map[string]string {
	taskID := "collaborative_analysis"
	results := make(map[string]string)

	dataAnalysis := s.runNamed(ctx, AgentData, "Analyze this data: "+data, taskID)
	results["data_analysis"] = dataAnalysis

	results["research_findings"] = s.runNamed(ctx, AgentResearch,
		"Find information about: "+topic, taskID)

	if strings.Contains(strings.ToLower(dataAnalysis), "calculate") || strings.ContainsAny(data, "0123456789") {
		results["math_analysis"] = s.runNamed(ctx, AgentMath,
			"Run advanced calculations on this data: "+data, taskID)
	}

	results["synthesis"] = s.runNamed(ctx, AgentCoordinator,
		fmt.Sprintf("Synthesize the collaborative analysis of %q over the data %q using the other agents' results", topic, data),
		taskID)
	return results
}

// runNamed looks an agent up by name and folds a missing agent into an
// error-string result, so a custom roster without one of the built-in names
// still completes the rest of the task.
func (s *System) runNamed(ctx context.Context, name, task, taskID string) string {
	a, ok := s.agents[name]
	if !ok {
		logger.Warn(s.log, "agent not registered", logger.Fields{
			"agent": name, "task": taskID,
		})
		return fmt.Sprintf("error in %s: agent not registered", name)
	}
	return s.runAgent(ctx, a, task, taskID)
}

// runAgent folds an agent failure into an error string so one broken agent
// does not abort the whole task.
func (s *System) runAgent(ctx context.Context, a *Agent, task, taskID string) string {
	result, err := a.ProcessTask(ctx, task, taskID)
	if err != nil {
		logger.Error(s.log, "agent failed", logger.Fields{
			"agent": a.Name, "task": taskID, "error": err.Error(),
		})
		return fmt.Sprintf("error in %s: %v", a.Name, err)
	}
	return result
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func builtinRoster() []AgentSpec {
	return []AgentSpec{
		{
			Name:           AgentMath,
			Specialization: "Mathematics and calculations",
			SystemPrompt: "You are an expert mathematician. Solve math problems, financial " +
				"and statistical calculations. Always use the calculator tool for precise " +
				"operations.",
			tools: []tools.Tool{tools.Calculator()},
		},
		{
			Name:           AgentData,
			Specialization: "Data analysis and statistics",
			SystemPrompt: "You are an expert data analyst. Process datasets, compute " +
				"statistics, and identify trends and patterns. Collaborate with MathExpert " +
				"for complex calculations and ResearchAgent for background context.",
			tools: []tools.Tool{tools.DataAnalysis(), tools.Calculator()},
		},
		{
			Name:           AgentResearch,
			Specialization: "Research and information",
			SystemPrompt: "You are a specialized researcher. Provide detailed information " +
				"on technology, business, and science. Support the other agents with " +
				"context and background data.",
			tools: []tools.Tool{tools.KnowledgeSearch()},
		},
		{
			Name:           AgentCoordinator,
			Specialization: "Coordination and planning",
			SystemPrompt: "You are the coordinator of a multi-agent system. Plan complex " +
				"tasks, assign work to the specialists, and produce final reports. You " +
				"have the full picture of the available skills.",
			tools: []tools.Tool{tools.ReportBuilder()},
		},
	}
}
