package agents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/condotto-ai/condotto/pkg/tools"
)

// AgentSpec describes one agent of a roster. Tools lists built-in tool names
// (calculator, data_analysis, knowledge_search, file_manager,
// report_builder).
type AgentSpec struct {
	Name           string   `yaml:"name"`
	Specialization string   `yaml:"specialization"`
	SystemPrompt   string   `yaml:"system_prompt"`
	Tools          []string `yaml:"tools"`

	tools []tools.Tool
}

type rosterFile struct {
	Agents []AgentSpec `yaml:"agents"`
}

// LoadRoster parses a YAML roster file and resolves its tool names against
// the built-in tool set.
func LoadRoster(path string) ([]AgentSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var file rosterFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("roster %s defines no agents", path)
	}

	byName := make(map[string]tools.Tool)
	for _, t := range tools.Builtin() {
		byName[t.Name] = t
	}

	seen := make(map[string]bool)
	for i := range file.Agents {
		spec := &file.Agents[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("roster %s: agent %d has no name", path, i)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("roster %s: duplicate agent %q", path, spec.Name)
		}
		seen[spec.Name] = true
		for _, name := range spec.Tools {
			tool, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("roster %s: agent %q references unknown tool %q", path, spec.Name, name)
			}
			spec.tools = append(spec.tools, tool)
		}
	}
	return file.Agents, nil
}

// NewSystemFromRoster builds a system from a YAML roster file.
func NewSystemFromRoster(path string, newClient ClientFactory, opts ...SystemOption) (*System, error) {
	roster, err := LoadRoster(path)
	if err != nil {
		return nil, err
	}
	return newSystem(roster, newClient, opts...)
}
