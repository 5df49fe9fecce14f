// Package store persists run conversations, keyed by run ID.
package store

import (
	"context"

	"github.com/effective-security/agentflow/llms"
)

// ConversationStore keeps the audit trail of orchestrator runs. Turns are
// only ever appended, never edited in place.
type ConversationStore interface {
	// Messages returns the stored turns for the run, in append order.
	Messages(ctx context.Context, runID string) ([]llms.Message, error)
	// Append adds turns to the run's conversation.
	Append(ctx context.Context, runID string, msgs ...llms.Message) error
	// Reset removes all turns for the run.
	Reset(ctx context.Context, runID string) error
}
