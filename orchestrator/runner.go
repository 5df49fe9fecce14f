// Package orchestrator drives agent runs: the single-agent tool-call loop
// and the multi-agent workflow modes composed from it.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/adapters"
	"github.com/effective-security/agentflow/agents"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/pkg/metricskey"
	"github.com/effective-security/agentflow/registry"
	"github.com/effective-security/agentflow/store"
	"github.com/effective-security/agentflow/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentflow", "orchestrator")

// ErrMaxTurnsExceeded is returned when a run hits the configured turn bound
// while the model keeps requesting tools. The partial conversation is
// surfaced on the run result.
var ErrMaxTurnsExceeded = errors.New("max turns exceeded")

// DefaultMaxTurns bounds the tool-call loop when no explicit bound is set.
const DefaultMaxTurns = 10

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 2 * time.Minute

// RunStatus is the terminal state of a single-agent run.
type RunStatus string

const (
	// StatusDone means the model produced a final answer.
	StatusDone RunStatus = "done"
	// StatusFailed means the model runtime raised an unrecoverable error.
	StatusFailed RunStatus = "failed"
	// StatusMaxTurnsExceeded means the turn bound stopped the loop.
	StatusMaxTurnsExceeded RunStatus = "max_turns_exceeded"
)

// RunResult is the outcome of one single-agent run. Conversation carries
// the full turn list, including the partial conversation of a bounded or
// failed run.
type RunResult struct {
	RunID        string
	Agent        string
	Status       RunStatus
	Answer       string
	Err          error
	Conversation []llms.Message
	// ModelTurns counts how many times the model was asked for an action.
	ModelTurns int
}

// AdapterFactory builds the framework adapter for an agent's tool subset.
// The factory is called once per run, so each run declares exactly the
// tools its agent was bound to.
type AdapterFactory func(descs []tools.Descriptor) (adapters.Adapter, error)

// Option configures a Runner.
type Option func(*config)

type config struct {
	store       store.ConversationStore
	callback    Callback
	maxTurns    int
	toolTimeout time.Duration
}

// WithStore persists each run's conversation under its run ID.
func WithStore(s store.ConversationStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithCallback sets the lifecycle callback.
func WithCallback(cb Callback) Option {
	return func(c *config) {
		c.callback = cb
	}
}

// WithMaxTurns bounds the number of model turns per run.
func WithMaxTurns(n int) Option {
	return func(c *config) {
		c.maxTurns = n
	}
}

// WithToolTimeout bounds each tool invocation. The timeout applies per
// call, so one slow tool does not consume the budget of its siblings.
func WithToolTimeout(d time.Duration) Option {
	return func(c *config) {
		c.toolTimeout = d
	}
}

// Runner drives single-agent runs against a registry. It holds no per-run
// state and is safe for concurrent runs.
type Runner struct {
	reg        *registry.Registry
	newAdapter AdapterFactory
	cfg        config
}

// NewRunner creates a runner. The adapter factory selects the execution
// framework; the runner itself never branches on framework identity.
func NewRunner(reg *registry.Registry, newAdapter AdapterFactory, opts ...Option) *Runner {
	cfg := config{
		maxTurns:    DefaultMaxTurns,
		toolTimeout: DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{
		reg:        reg,
		newAdapter: newAdapter,
		cfg:        cfg,
	}
}

// Run executes one agent against the input until the model produces a final
// answer, the model runtime fails, or the turn bound is reached. The
// returned result is non-nil even on error and carries the partial
// conversation.
func (r *Runner) Run(ctx context.Context, agent *agents.BoundAgent, input string) (*RunResult, error) {
	started := time.Now()
	defer metricskey.PerfRun.MeasureSince(started, agent.Name())

	if r.cfg.callback != nil {
		r.cfg.callback.OnRunStart(ctx, agent, input)
	}

	res, err := r.run(ctx, agent, input)
	switch res.Status {
	case StatusDone:
		metricskey.StatsRunsSucceeded.IncrCounter(1, agent.Name())
	case StatusMaxTurnsExceeded:
		metricskey.StatsRunsMaxTurns.IncrCounter(1, agent.Name())
	default:
		metricskey.StatsRunsFailed.IncrCounter(1, agent.Name())
	}

	if r.cfg.store != nil {
		if serr := r.cfg.store.Append(ctx, res.RunID, res.Conversation...); serr != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"agent", agent.Name(),
				"run_id", res.RunID,
				"status", "failed_to_persist_run",
				"err", serr.Error(),
			)
		}
	}

	if err != nil {
		if r.cfg.callback != nil {
			r.cfg.callback.OnRunError(ctx, agent, input, err)
		}
		return res, err
	}
	if r.cfg.callback != nil {
		r.cfg.callback.OnRunEnd(ctx, agent, res)
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, agent *agents.BoundAgent, input string) (*RunResult, error) {
	res := &RunResult{
		RunID: uuid.NewString(),
		Agent: agent.Name(),
	}

	adapter, err := r.newAdapter(agent.Tools())
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res, err
	}

	decl := adapter.Declarations()
	sysPrompt := strings.TrimRight(agent.Role(), "\n")
	if decl.Prompt != "" {
		sysPrompt = fmt.Sprintf("%s\n\n%s", sysPrompt, decl.Prompt)
	}

	conv := NewConversation(
		llms.MessageFromTextParts(llms.RoleSystem, sysPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, input),
	)

	var callOpts []llms.CallOption
	if len(decl.Tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(decl.Tools))
	}

	model := agent.Model()
	fail := func(err error) (*RunResult, error) {
		res.Status = StatusFailed
		res.Err = err
		res.Conversation = conv.Messages()
		return res, err
	}

	for res.ModelTurns < r.cfg.maxTurns {
		resp, err := model.GenerateContent(ctx, conv.Messages(), callOpts...)
		if err != nil {
			return fail(errors.WithMessagef(err, "agent %s: model runtime failure", agent.Name()))
		}
		res.ModelTurns++

		if len(resp.Choices) == 0 {
			return fail(errors.Newf("agent %s: model returned no choices", agent.Name()))
		}
		choice := resp.Choices[0]

		calls, requested := adapter.ParseToolCalls(choice)
		if !requested {
			res.Status = StatusDone
			res.Answer = adapter.FinalAnswer(choice)
			conv.Append(llms.MessageFromTextParts(llms.RoleAI, res.Answer))
			res.Conversation = conv.Messages()

			logger.ContextKV(ctx, xlog.DEBUG,
				"agent", agent.Name(),
				"run_id", res.RunID,
				"status", "run_done",
				"model_turns", res.ModelTurns,
				"answer", slices.StringUpto(res.Answer, 64),
			)
			return res, nil
		}

		// Record the model's request turn before dispatching, so the
		// conversation shows request then results.
		if len(choice.ToolCalls) > 0 {
			conv.Append(llms.MessageFromToolCalls(llms.RoleAI, choice.ToolCalls...))
		} else {
			conv.Append(llms.MessageFromTextParts(llms.RoleAI, choice.Content))
		}

		results, err := r.dispatchToolCalls(ctx, agent.Name(), calls)
		if err != nil {
			// Cancellation released the join barrier.
			return fail(err)
		}
		for _, tr := range results {
			conv.Append(adapter.FormatToolResult(tr))
		}
	}

	res.Status = StatusMaxTurnsExceeded
	res.Err = errors.WithMessagef(ErrMaxTurnsExceeded, "agent %s: %d turns", agent.Name(), res.ModelTurns)
	res.Conversation = conv.Messages()
	return res, res.Err
}

// dispatchToolCalls runs all tool calls of one model turn concurrently and
// waits for every result. There is no ordering guarantee among the
// invocations, but the returned results follow the request order so the
// conversation stays deterministic. A tool failure is not an error here; it
// becomes a tool-error turn. Only cancellation fails the dispatch.
func (r *Runner) dispatchToolCalls(ctx context.Context, agentName string, calls []adapters.ToolCall) ([]adapters.ToolResult, error) {
	results := make([]adapters.ToolResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = r.invokeTool(ctx, agentName, call)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WithMessage(err, "run cancelled")
	}
	return results, nil
}

func (r *Runner) invokeTool(ctx context.Context, agentName string, call adapters.ToolCall) adapters.ToolResult {
	cb := r.cfg.callback
	args := string(call.Arguments)
	if cb != nil {
		cb.OnToolStart(ctx, agentName, call.Name, args)
	}

	callCtx := ctx
	if r.cfg.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.toolTimeout)
		defer cancel()
	}

	out, err := r.reg.Invoke(callCtx, call.Name, call.Arguments)
	if err != nil {
		if errors.Is(err, registry.ErrToolNotFound) && cb != nil {
			cb.OnToolNotFound(ctx, agentName, call.Name)
		} else if cb != nil {
			cb.OnToolError(ctx, agentName, call.Name, args, err)
		}

		logger.ContextKV(ctx, xlog.WARNING,
			"agent", agentName,
			"status", "tool_call_error",
			"tool", call.Name,
			"err", err.Error(),
		)

		// Recorded as a tool-error turn; the model decides whether to
		// retry, pick another tool, or give up. No automatic retry.
		return adapters.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}
	}

	if cb != nil {
		cb.OnToolEnd(ctx, agentName, call.Name, args, out)
	}
	return adapters.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: out,
	}
}
