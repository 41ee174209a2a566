package memory

import (
	"testing"

	"github.com/condotto-ai/condotto/pkg/types"
)

func TestAddTurnPreservesOrder(t *testing.T) {
	m := New()
	m.AddText("hi, I'm Marco", types.RoleUser)
	m.AddText("nice to meet you", types.RoleAssistant)
	m.AddTurn([]types.Block{
		types.TextBlock{Content: "what's my name?"},
		types.TextBlock{Content: "answer briefly"},
	}, types.RoleUser)

	if m.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", m.Len())
	}
	turns := m.Turns()
	if turns[0].Role != types.RoleUser || turns[1].Role != types.RoleAssistant {
		t.Fatalf("unexpected roles: %v %v", turns[0].Role, turns[1].Role)
	}
	if got := len(m.Blocks()); got != 4 {
		t.Fatalf("expected 4 flattened blocks, got %d", got)
	}
	if types.JoinText(turns[2].Blocks) != "what's my name?answer briefly" {
		t.Fatalf("block order lost: %q", types.JoinText(turns[2].Blocks))
	}
}

func TestCopyIsIndependent(t *testing.T) {
	m := New()
	m.AddText("original", types.RoleUser)

	backup := m.Copy()
	m.AddText("later", types.RoleAssistant)
	m.Clear()

	if backup.Len() != 1 {
		t.Fatalf("copy affected by source mutation, len=%d", backup.Len())
	}
	if types.JoinText(backup.Turns()[0].Blocks) != "original" {
		t.Fatalf("copy content changed: %q", types.JoinText(backup.Turns()[0].Blocks))
	}
	if m.Len() != 0 {
		t.Fatalf("clear failed, len=%d", m.Len())
	}
}
