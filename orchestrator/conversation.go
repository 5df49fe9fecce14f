package orchestrator

import (
	"slices"

	"github.com/effective-security/agentflow/llms"
)

// Conversation is the append-only turn list of a single run. Each run owns
// its own conversation, so no locking is needed between runs.
type Conversation struct {
	msgs []llms.Message
}

// NewConversation creates a conversation seeded with the given turns.
func NewConversation(msgs ...llms.Message) *Conversation {
	return &Conversation{msgs: msgs}
}

// Append adds turns at the end. Turns are never edited in place.
func (c *Conversation) Append(msgs ...llms.Message) {
	c.msgs = append(c.msgs, msgs...)
}

// Messages returns a snapshot copy of the turns in append order.
func (c *Conversation) Messages() []llms.Message {
	return slices.Clone(c.msgs)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.msgs)
}
