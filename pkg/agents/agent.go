package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/condotto-ai/condotto/pkg/clients"
	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/memory"
	"github.com/condotto-ai/condotto/pkg/metrics"
	"github.com/condotto-ai/condotto/pkg/tools"
	"github.com/condotto-ai/condotto/pkg/types"
)

// Agent is one specialist: a named client with its own memory, tools, and a
// connection to the shared bus.
type Agent struct {
	Name           string
	Specialization string

	client  clients.Client
	tools   []tools.Tool
	memory  *memory.Memory
	bus     *Bus
	log     logger.Logger
	tracker *metrics.Tracker
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentTools sets the agent's tool set.
func WithAgentTools(ts ...tools.Tool) AgentOption {
	return func(a *Agent) { a.tools = append(a.tools, ts...) }
}

// WithAgentLogger sets the agent logger.
func WithAgentLogger(l logger.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}

// WithAgentTracker records the agent's usage into tr.
func WithAgentTracker(tr *metrics.Tracker) AgentOption {
	return func(a *Agent) { a.tracker = tr }
}

// NewAgent builds an agent around client, attached to bus.
func NewAgent(name, specialization string, client clients.Client, bus *Bus, opts ...AgentOption) *Agent {
	a := &Agent{
		Name:           name,
		Specialization: specialization,
		client:         client,
		memory:         memory.New(),
		bus:            bus,
		log:            logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// ProcessTask drains the agent's inbox into the task context, invokes the
// model with the agent's tools, and returns the result text.
func (a *Agent) ProcessTask(ctx context.Context, task, taskID string) (string, error) {
	fullTask := task
	if inbox := a.bus.MessagesFor(a.Name); len(inbox) > 0 {
		var sb strings.Builder
		sb.WriteString(task)
		sb.WriteString("\n\nMessages received:\n")
		for _, msg := range inbox {
			fmt.Fprintf(&sb, "- %s: %s\n", msg.Sender, msg.Content)
		}
		fullTask = sb.String()
		a.bus.ClearFor(a.Name)
	}

	logger.Info(a.log, "processing task", logger.Fields{
		"agent": a.Name, "task": taskID,
	})
	resp, err := a.client.Invoke(ctx, types.Text(fullTask),
		clients.WithMemory(a.memory),
		clients.WithTools(a.tools...),
	)
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Name, err)
	}
	if a.tracker != nil {
		a.tracker.Track(resp, a.client.Model())
	}

	result := strings.TrimSpace(resp.Text())
	if result == "" {
		if summaries := toolSummaries(resp, 2); len(summaries) > 0 {
			result = "Completed operations: " + strings.Join(summaries, "; ")
		} else {
			result = "Task processed without tool usage"
		}
	}
	return result, nil
}

// Send publishes a message from this agent.
func (a *Agent) Send(receiver, content, taskID string, typ MessageType) Message {
	return a.bus.Publish(a.Name, receiver, content, taskID, typ)
}

// Memory exposes the agent's conversation memory.
func (a *Agent) Memory() *memory.Memory { return a.memory }

// toolSummaries collects up to max tool result payloads from a response.
func toolSummaries(resp *types.Response, max int) []string {
	var out []string
	for _, block := range resp.Content {
		if res, ok := block.(types.ToolResultBlock); ok {
			out = append(out, res.Content)
			if len(out) == max {
				break
			}
		}
	}
	return out
}
