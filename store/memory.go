package store

import (
	"context"
	"slices"
	"sync"

	"github.com/effective-security/agentflow/llms"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]llms.Message
}

// NewMemoryStore creates an in-process conversation store.
func NewMemoryStore() ConversationStore {
	return &inMemory{}
}

func (m *inMemory) Messages(_ context.Context, runID string) ([]llms.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.storage == nil {
		return nil, nil
	}
	return slices.Clone(m.storage[runID]), nil
}

func (m *inMemory) Append(_ context.Context, runID string, msgs ...llms.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string][]llms.Message)
	}
	m.storage[runID] = append(m.storage[runID], msgs...)
	return nil
}

func (m *inMemory) Reset(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		delete(m.storage, runID)
	}
	return nil
}
