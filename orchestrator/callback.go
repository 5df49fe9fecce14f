package orchestrator

import (
	"context"

	"github.com/effective-security/agentflow/agents"
)

// Callback receives run and tool lifecycle events. Implementations must be
// safe for concurrent use: tool events from one model turn may arrive from
// multiple goroutines.
type Callback interface {
	OnRunStart(ctx context.Context, agent *agents.BoundAgent, input string)
	OnRunEnd(ctx context.Context, agent *agents.BoundAgent, result *RunResult)
	OnRunError(ctx context.Context, agent *agents.BoundAgent, input string, err error)
	OnToolStart(ctx context.Context, agentName, toolName, input string)
	OnToolEnd(ctx context.Context, agentName, toolName, input, output string)
	OnToolError(ctx context.Context, agentName, toolName, input string, err error)
	OnToolNotFound(ctx context.Context, agentName, toolName string)
}
