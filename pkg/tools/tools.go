// Package tools defines the provider-agnostic tool model: functions exposed
// to a model for tool calling, resolved and executed locally after the model
// requests them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/condotto-ai/condotto/pkg/schema"
)

// Handler executes a tool against its raw JSON arguments and returns the
// result payload fed back to the model.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool describes one callable function: its name and description as shown
// to the model, the JSON schema of its arguments, and the local handler.
type Tool struct {
	Name        string
	Description string
	Schema      *schema.Schema
	Strict      bool
	Handler     Handler
}

// Registry holds tools in registration order and executes calls by name.
type Registry struct {
	byName map[string]Tool
	order  []Tool
}

// NewRegistry builds a registry from the given tools. Duplicate names keep
// the last registration.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name]; exists {
		for i, existing := range r.order {
			if existing.Name == t.Name {
				r.order[i] = t
				break
			}
		}
	} else {
		r.order = append(r.order, t)
	}
	r.byName[t.Name] = t
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

type toolEnvelope struct {
	OK   bool   `json:"ok"`
	Tool string `json:"tool,omitempty"`
	Data any    `json:"data,omitempty"`
	Err  string `json:"error,omitempty"`
}

// Execute runs the named tool and returns a JSON envelope of the form
// {"ok":bool,"tool":name,"data":...} or {"ok":false,"error":...}. Failures
// are reported inside the envelope so the model sees them and can recover;
// only envelope marshaling itself returns a Go error.
func (r *Registry) Execute(ctx context.Context, name, argText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return marshalEnvelope(name, nil, err)
	}
	tool, ok := r.byName[name]
	if !ok {
		return marshalEnvelope(name, nil, fmt.Errorf("unknown tool: %s", name))
	}
	if argText == "" {
		argText = "{}"
	}
	if !json.Valid([]byte(argText)) {
		return marshalEnvelope(name, nil, fmt.Errorf("arguments are not valid JSON"))
	}
	data, err := tool.Handler(ctx, json.RawMessage(argText))
	return marshalEnvelope(name, data, err)
}

func marshalEnvelope(toolName string, data any, err error) (string, error) {
	env := toolEnvelope{OK: err == nil, Tool: toolName, Data: data}
	if err != nil {
		env.Err = err.Error()
	}
	payload, marshalErr := json.Marshal(env)
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(payload), nil
}
