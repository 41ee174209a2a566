// Package memory keeps multi-turn conversation context in process memory.
// It is an ordered list of turns, not a persistence layer.
package memory

import "github.com/condotto-ai/condotto/pkg/types"

// Turn is one conversation turn: a role plus its ordered content blocks.
type Turn struct {
	Role   types.Role
	Blocks []types.Block
}

// Memory is an append-only sequence of conversation turns.
type Memory struct {
	turns []Turn
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{}
}

// AddTurn appends one turn. Empty block slices are recorded as-is so turn
// counting stays faithful to what the caller stored.
func (m *Memory) AddTurn(blocks []types.Block, role types.Role) {
	copied := make([]types.Block, len(blocks))
	copy(copied, blocks)
	m.turns = append(m.turns, Turn{Role: role, Blocks: copied})
}

// AddText appends a single-text-block turn.
func (m *Memory) AddText(content string, role types.Role) {
	m.AddTurn(types.Text(content), role)
}

// Turns returns the stored turns in insertion order.
func (m *Memory) Turns() []Turn {
	return m.turns
}

// Blocks returns every block across all turns, flattened in order.
func (m *Memory) Blocks() []types.Block {
	var out []types.Block
	for _, turn := range m.turns {
		out = append(out, turn.Blocks...)
	}
	return out
}

// Len returns the number of turns.
func (m *Memory) Len() int {
	return len(m.turns)
}

// Clear removes all turns.
func (m *Memory) Clear() {
	m.turns = nil
}

// Copy returns a deep copy of the turn structure. Blocks are value types,
// so sharing them between copies is safe.
func (m *Memory) Copy() *Memory {
	dup := &Memory{turns: make([]Turn, len(m.turns))}
	for i, turn := range m.turns {
		blocks := make([]types.Block, len(turn.Blocks))
		copy(blocks, turn.Blocks)
		dup.turns[i] = Turn{Role: turn.Role, Blocks: blocks}
	}
	return dup
}
