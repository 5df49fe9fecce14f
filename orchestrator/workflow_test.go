package orchestrator_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/agents"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/orchestrator"
	"github.com/effective-security/agentflow/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindAgent(t *testing.T, reg *registry.Registry, name string, model llms.Model) *agents.BoundAgent {
	t.Helper()
	agent, err := agents.Definition{
		Name:  name,
		Role:  "You are " + name + ".",
		Model: model,
	}.Bind(reg)
	require.NoError(t, err)
	return agent
}

func Test_Workflow_Sequential(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	runner := orchestrator.NewRunner(reg, newFuncallFactory())
	wf := orchestrator.NewWorkflow(runner)

	first := &fakeModel{name: "m1", responses: []*llms.ContentResponse{answer("draft report")}}
	second := &fakeModel{name: "m2", responses: []*llms.ContentResponse{answer("polished report")}}

	res, err := wf.RunSequential(t.Context(), []*agents.BoundAgent{
		bindAgent(t, reg, "writer", first),
		bindAgent(t, reg, "editor", second),
	}, "write a report")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.False(t, res.Failed())
	assert.Equal(t, "polished report", res.FinalAnswer())

	// the second agent was seeded with the first agent's answer
	require.Equal(t, 1, second.turns())
	seed := second.requests[0]
	require.GreaterOrEqual(t, len(seed), 2)
	assert.Equal(t, "draft report", seed[1].GetContent())
}

func Test_Workflow_SequentialStopsEarly(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	runner := orchestrator.NewRunner(reg, newFuncallFactory())
	wf := orchestrator.NewWorkflow(runner)

	broken := &fakeModel{name: "m1", err: errors.New("provider down")}
	next := &fakeModel{name: "m2", responses: []*llms.ContentResponse{answer("never runs")}}

	res, err := wf.RunSequential(t.Context(), []*agents.BoundAgent{
		bindAgent(t, reg, "writer", broken),
		bindAgent(t, reg, "editor", next),
	}, "write a report")
	require.Error(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, orchestrator.StatusFailed, res.Entries[0].Status)
	// the downstream agent never ran
	assert.Equal(t, 0, next.turns())
}

func Test_Workflow_FanOutIsolation(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	runner := orchestrator.NewRunner(reg, newFuncallFactory())
	wf := orchestrator.NewWorkflow(runner)

	good := &fakeModel{name: "m1", responses: []*llms.ContentResponse{answer("A succeeded")}}
	bad := &fakeModel{name: "m2", err: errors.New("provider down")}

	res, err := wf.RunFanOut(t.Context(), []*agents.BoundAgent{
		bindAgent(t, reg, "A", good),
		bindAgent(t, reg, "B", bad),
	}, "same request")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	// entries keep the agent order
	assert.Equal(t, "A", res.Entries[0].Agent)
	assert.Equal(t, orchestrator.StatusDone, res.Entries[0].Status)
	assert.Equal(t, "A succeeded", res.Entries[0].Answer)
	assert.NoError(t, res.Entries[0].Err)

	assert.Equal(t, "B", res.Entries[1].Agent)
	assert.Equal(t, orchestrator.StatusFailed, res.Entries[1].Status)
	assert.Error(t, res.Entries[1].Err)

	assert.True(t, res.Failed())
	assert.Equal(t, "A succeeded", res.FinalAnswer())
}
