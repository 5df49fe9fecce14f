package orchestrator

import (
	"context"
	"time"

	"github.com/effective-security/agentflow/agents"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/pkg/metricskey"
	"github.com/effective-security/xlog"
	"golang.org/x/sync/errgroup"
)

// AgentResult is one agent's entry in a workflow result.
type AgentResult struct {
	Agent        string
	RunID        string
	Status       RunStatus
	Answer       string
	Err          error
	Conversation []llms.Message
}

// WorkflowResult aggregates the per-agent outcomes of one workflow. Entries
// follow the agent order given to the workflow call.
type WorkflowResult struct {
	Entries []AgentResult
}

// Failed reports whether any entry did not complete.
func (r *WorkflowResult) Failed() bool {
	for _, e := range r.Entries {
		if e.Status != StatusDone {
			return true
		}
	}
	return false
}

// FinalAnswer returns the last completed entry's answer.
func (r *WorkflowResult) FinalAnswer() string {
	for i := len(r.Entries) - 1; i >= 0; i-- {
		if r.Entries[i].Status == StatusDone {
			return r.Entries[i].Answer
		}
	}
	return ""
}

// Workflow composes single-agent runs. The caller selects the mode; the
// workflow never infers it from content.
type Workflow struct {
	runner *Runner
}

// NewWorkflow creates a workflow over the runner.
func NewWorkflow(runner *Runner) *Workflow {
	return &Workflow{runner: runner}
}

// RunSequential chains the agents: each agent's final answer seeds the next
// agent's input. The chain stops early when a run does not complete, and
// the result contains entries only for the runs that were started.
func (w *Workflow) RunSequential(ctx context.Context, list []*agents.BoundAgent, input string) (*WorkflowResult, error) {
	started := time.Now()
	result := &WorkflowResult{}

	next := input
	for _, agent := range list {
		run, err := w.runner.Run(ctx, agent, next)
		result.Entries = append(result.Entries, entryFromRun(run))
		if err != nil {
			metricskey.StatsWorkflowsFailed.IncrCounter(1, "sequential")
			logger.ContextKV(ctx, xlog.WARNING,
				"mode", "sequential",
				"agent", agent.Name(),
				"status", string(run.Status),
				"err", err.Error(),
			)
			return result, err
		}
		next = run.Answer
	}

	metricskey.StatsWorkflowsSucceeded.IncrCounter(1, "sequential")
	metricskey.PerfRun.MeasureSince(started, "workflow_sequential")
	return result, nil
}

// RunFanOut runs all agents concurrently against the same input and
// aggregates every outcome. One agent's failure neither aborts nor taints
// its siblings, so the error return is always nil unless the context itself
// was cancelled; per-agent failures live on the entries.
func (w *Workflow) RunFanOut(ctx context.Context, list []*agents.BoundAgent, input string) (*WorkflowResult, error) {
	started := time.Now()
	result := &WorkflowResult{
		Entries: make([]AgentResult, len(list)),
	}

	var g errgroup.Group
	for i, agent := range list {
		g.Go(func() error {
			run, _ := w.runner.Run(ctx, agent, input)
			result.Entries[i] = entryFromRun(run)
			return nil
		})
	}
	// Runs never propagate their errors here, so Wait only joins.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		metricskey.StatsWorkflowsFailed.IncrCounter(1, "fan_out")
		return result, err
	}

	if result.Failed() {
		metricskey.StatsWorkflowsFailed.IncrCounter(1, "fan_out")
	} else {
		metricskey.StatsWorkflowsSucceeded.IncrCounter(1, "fan_out")
	}
	metricskey.PerfRun.MeasureSince(started, "workflow_fan_out")
	return result, nil
}

func entryFromRun(run *RunResult) AgentResult {
	return AgentResult{
		Agent:        run.Agent,
		RunID:        run.RunID,
		Status:       run.Status,
		Answer:       run.Answer,
		Err:          run.Err,
		Conversation: run.Conversation,
	}
}
