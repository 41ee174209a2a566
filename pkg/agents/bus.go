// Package agents implements a small multi-agent system: specialized agents
// sharing a message bus, coordinated over a common task.
package agents

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/condotto-ai/condotto/pkg/logger"
)

// MessageType classifies inter-agent messages.
type MessageType string

const (
	MessageRequest  MessageType = "request"
	MessageResponse MessageType = "response"
	MessageInfo     MessageType = "info"
)

// Message is one inter-agent message.
type Message struct {
	ID       string
	Sender   string
	Receiver string
	Content  string
	TaskID   string
	Type     MessageType
	SentAt   time.Time
}

// Bus is an append-only in-memory message log shared by the agents of one
// system. Safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	messages []Message
	log      logger.Logger
	now      func() time.Time
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the bus logger.
func WithBusLogger(l logger.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBus returns an empty Bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{log: logger.Nop{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Publish appends a message to the log and returns it with its assigned ID
// and timestamp.
func (b *Bus) Publish(sender, receiver, content, taskID string, typ MessageType) Message {
	msg := Message{
		ID:       uuid.NewString(),
		Sender:   sender,
		Receiver: receiver,
		Content:  content,
		TaskID:   taskID,
		Type:     typ,
		SentAt:   b.now(),
	}
	b.mu.Lock()
	b.messages = append(b.messages, msg)
	b.mu.Unlock()
	logger.Debug(b.log, "message published", logger.Fields{
		"sender": sender, "receiver": receiver, "task": taskID, "type": typ,
	})
	return msg
}

// MessagesFor returns the messages addressed to agent, in publish order.
func (b *Bus) MessagesFor(agent string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, msg := range b.messages {
		if msg.Receiver == agent {
			out = append(out, msg)
		}
	}
	return out
}

// ClearFor removes the messages addressed to agent, leaving every other
// receiver's messages in place.
func (b *Bus) ClearFor(agent string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.messages[:0]
	for _, msg := range b.messages {
		if msg.Receiver != agent {
			kept = append(kept, msg)
		}
	}
	b.messages = kept
}

// Len returns the number of messages currently in the log.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}
