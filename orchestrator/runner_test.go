package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/adapters"
	"github.com/effective-security/agentflow/adapters/funcall"
	"github.com/effective-security/agentflow/agents"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/orchestrator"
	"github.com/effective-security/agentflow/registry"
	"github.com/effective-security/agentflow/store"
	"github.com/effective-security/agentflow/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel replays scripted responses and records every request.
type fakeModel struct {
	name      string
	responses []*llms.ContentResponse
	err       error

	mu       sync.Mutex
	requests [][]llms.Message
}

func (m *fakeModel) GetName() string                    { return m.name }
func (m *fakeModel) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *fakeModel) turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func answer(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}
}

func toolRequest(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:           "call_" + name,
				FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
			}},
		}},
	}
}

type lookupInput struct {
	Key string `json:"key" jsonschema:"title=Key,description=Key to look up"`
}

func newFuncallFactory() orchestrator.AdapterFactory {
	return func(descs []tools.Descriptor) (adapters.Adapter, error) {
		return funcall.New(descs)
	}
}

func newTestAgent(t *testing.T, reg *registry.Registry, model llms.Model, toolNames ...string) *agents.BoundAgent {
	t.Helper()
	agent, err := agents.Definition{
		Name:      "analyst",
		Role:      "You are a data analyst.",
		ToolNames: toolNames,
		Model:     model,
	}.Bind(reg)
	require.NoError(t, err)
	return agent
}

func Test_Runner_DoneWithoutTools(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "fake", responses: []*llms.ContentResponse{answer("42")}}
	reg := registry.New()
	runner := orchestrator.NewRunner(reg, newFuncallFactory())

	res, err := runner.Run(t.Context(), newTestAgent(t, reg, model), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusDone, res.Status)
	assert.Equal(t, "42", res.Answer)
	assert.NotEmpty(t, res.RunID)
	// exactly one model turn
	assert.Equal(t, 1, res.ModelTurns)
	assert.Equal(t, 1, model.turns())

	// conversation: system, human, final answer
	require.Len(t, res.Conversation, 3)
	assert.Equal(t, llms.RoleSystem, res.Conversation[0].Role)
	assert.Equal(t, llms.RoleHuman, res.Conversation[1].Role)
	assert.Equal(t, llms.RoleAI, res.Conversation[2].Role)
}

func Test_Runner_ToolLoop(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	lookup, err := tools.NewFunc("lookup", "Looks up a value.", func(_ context.Context, in *lookupInput) (string, error) {
		return "value of " + in.Key, nil
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(lookup))

	model := &fakeModel{name: "fake", responses: []*llms.ContentResponse{
		toolRequest("lookup", `{"key":"revenue"}`),
		answer("revenue is up"),
	}}
	ms := store.NewMemoryStore()
	runner := orchestrator.NewRunner(reg, newFuncallFactory(), orchestrator.WithStore(ms))

	res, err := runner.Run(t.Context(), newTestAgent(t, reg, model, "lookup"), "check revenue")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusDone, res.Status)
	assert.Equal(t, "revenue is up", res.Answer)
	assert.Equal(t, 2, res.ModelTurns)

	// system, human, tool request, tool result, final answer
	require.Len(t, res.Conversation, 5)
	assert.Equal(t, llms.RoleAI, res.Conversation[2].Role)
	assert.Equal(t, llms.RoleTool, res.Conversation[3].Role)
	assert.Contains(t, res.Conversation[3].GetContent(), "value of revenue")

	// the conversation was persisted under the run ID
	stored, err := ms.Messages(t.Context(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func Test_Runner_MaxTurnsExceeded(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	lookup, err := tools.NewFunc("lookup", "Looks up a value.", func(_ context.Context, in *lookupInput) (string, error) {
		return "still looking for " + in.Key, nil
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(lookup))

	// the model always requests another tool call
	model := &fakeModel{name: "fake", responses: []*llms.ContentResponse{
		toolRequest("lookup", `{"key":"forever"}`),
	}}
	runner := orchestrator.NewRunner(reg, newFuncallFactory(), orchestrator.WithMaxTurns(3))

	res, err := runner.Run(t.Context(), newTestAgent(t, reg, model, "lookup"), "never finishes")
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrMaxTurnsExceeded))
	assert.Equal(t, orchestrator.StatusMaxTurnsExceeded, res.Status)
	// exactly 3 model turns, never more
	assert.Equal(t, 3, res.ModelTurns)
	assert.Equal(t, 3, model.turns())
	// the partial conversation is surfaced
	assert.NotEmpty(t, res.Conversation)
}

func Test_Runner_ToolErrorTurn(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	flaky, err := tools.NewFunc("flaky", "Always fails.", func(_ context.Context, _ *lookupInput) (string, error) {
		return "", errors.New("backend unavailable")
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(flaky))

	model := &fakeModel{name: "fake", responses: []*llms.ContentResponse{
		toolRequest("flaky", `{"key":"x"}`),
		answer("giving up"),
	}}
	runner := orchestrator.NewRunner(reg, newFuncallFactory())

	res, err := runner.Run(t.Context(), newTestAgent(t, reg, model, "flaky"), "try it")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusDone, res.Status)
	assert.Equal(t, "giving up", res.Answer)

	// the failure is recorded as a tool-error turn, not swallowed
	require.Len(t, res.Conversation, 5)
	assert.Equal(t, llms.RoleTool, res.Conversation[3].Role)
	assert.Contains(t, res.Conversation[3].GetContent(), "backend unavailable")
}

func Test_Runner_ModelFailure(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "fake", err: errors.New("rate limited")}
	reg := registry.New()
	runner := orchestrator.NewRunner(reg, newFuncallFactory())

	res, err := runner.Run(t.Context(), newTestAgent(t, reg, model), "hello")
	require.Error(t, err)
	assert.Equal(t, orchestrator.StatusFailed, res.Status)
	assert.Contains(t, err.Error(), "model runtime failure")
}

func Test_Runner_Cancellation(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	started := make(chan struct{})
	blocking, err := tools.NewFunc("block", "Blocks until cancelled.", func(ctx context.Context, _ *lookupInput) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(blocking))

	model := &fakeModel{name: "fake", responses: []*llms.ContentResponse{
		toolRequest("block", `{"key":"x"}`),
	}}
	runner := orchestrator.NewRunner(reg, newFuncallFactory(), orchestrator.WithToolTimeout(time.Minute))

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		<-started
		cancel()
	}()

	begun := time.Now()
	res, err := runner.Run(ctx, newTestAgent(t, reg, model, "block"), "hang")
	require.Error(t, err)
	assert.Equal(t, orchestrator.StatusFailed, res.Status)
	// the join barrier releases promptly, not after the tool timeout
	assert.Less(t, time.Since(begun), 10*time.Second)
}

// recordingCallback counts lifecycle events.
type recordingCallback struct {
	mu        sync.Mutex
	runStarts int
	runEnds   int
	runErrors int
	toolStart int
	toolEnd   int
	toolErr   int
	notFound  int
}

func (c *recordingCallback) OnRunStart(context.Context, *agents.BoundAgent, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runStarts++
}
func (c *recordingCallback) OnRunEnd(context.Context, *agents.BoundAgent, *orchestrator.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runEnds++
}
func (c *recordingCallback) OnRunError(context.Context, *agents.BoundAgent, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runErrors++
}
func (c *recordingCallback) OnToolStart(context.Context, string, string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolStart++
}
func (c *recordingCallback) OnToolEnd(context.Context, string, string, string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolEnd++
}
func (c *recordingCallback) OnToolError(context.Context, string, string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolErr++
}
func (c *recordingCallback) OnToolNotFound(context.Context, string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notFound++
}

func Test_Runner_Callbacks(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	lookup, err := tools.NewFunc("lookup", "Looks up a value.", func(_ context.Context, in *lookupInput) (string, error) {
		return in.Key, nil
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(lookup))

	model := &fakeModel{name: "fake", responses: []*llms.ContentResponse{
		toolRequest("lookup", `{"key":"a"}`),
		// the model asks for a tool that is not registered
		toolRequest("missing", `{}`),
		answer("done"),
	}}

	cb := &recordingCallback{}
	runner := orchestrator.NewRunner(reg, newFuncallFactory(), orchestrator.WithCallback(cb))

	res, err := runner.Run(t.Context(), newTestAgent(t, reg, model, "lookup"), "go")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusDone, res.Status)

	assert.Equal(t, 1, cb.runStarts)
	assert.Equal(t, 1, cb.runEnds)
	assert.Equal(t, 0, cb.runErrors)
	assert.Equal(t, 2, cb.toolStart)
	assert.Equal(t, 1, cb.toolEnd)
	assert.Equal(t, 1, cb.notFound)
}
