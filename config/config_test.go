package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/config"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/registry"
	"github.com/effective-security/agentflow/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
remote_hosts:
  - name: jira
    endpoint: http://localhost:9000/rpc
    token: ${JIRA_TOKEN}
agents:
  - name: analyst
    role: You are a data analyst.
    model: gpt-4o
    tools: [lookup]
  - name: reviewer
    role: You review reports.
    model: gpt-4o
    tools: [lookup]
workflows:
  - name: report
    mode: sequential
    agents: [analyst, reviewer]
  - name: survey
    mode: fan_out
    agents: [analyst, reviewer]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_Config_Load(t *testing.T) {
	t.Setenv("JIRA_TOKEN", "secret")

	cfg, err := config.Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	require.Len(t, cfg.RemoteHosts, 1)
	assert.Equal(t, "secret", cfg.RemoteHosts[0].Token)

	agent, ok := cfg.Agent("analyst")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", agent.Model)
	assert.Equal(t, []string{"lookup"}, agent.Tools)

	wf, ok := cfg.Workflow("report")
	require.True(t, ok)
	assert.Equal(t, "sequential", wf.Mode)

	_, ok = cfg.Workflow("missing")
	assert.False(t, ok)
}

func Test_Config_Validation(t *testing.T) {
	t.Parallel()

	// an agent without tools or model is rejected
	_, err := config.Load(writeConfig(t, `
agents:
  - name: broken
    role: Missing everything.
`))
	require.Error(t, err)

	// workflow mode is constrained
	_, err = config.Load(writeConfig(t, `
agents:
  - name: a
    role: r
    model: m
    tools: [x]
workflows:
  - name: w
    mode: roundrobin
    agents: [a]
`))
	require.Error(t, err)

	// workflows may only reference configured agents
	_, err = config.Load(writeConfig(t, `
agents:
  - name: a
    role: r
    model: m
    tools: [x]
workflows:
  - name: w
    mode: sequential
    agents: [ghost]
`))
	require.Error(t, err)

	// duplicate agent names are rejected
	_, err = config.Load(writeConfig(t, `
agents:
  - name: a
    role: r
    model: m
    tools: [x]
  - name: a
    role: r2
    model: m
    tools: [x]
`))
	require.Error(t, err)
}

type lookupInput struct {
	Key string `json:"key" jsonschema:"title=Key,description=Key to look up"`
}

type staticModel struct {
	name string
}

func (m *staticModel) GetName() string                    { return m.name }
func (m *staticModel) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }
func (m *staticModel) GenerateContent(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func Test_Config_BindAgents(t *testing.T) {
	t.Setenv("JIRA_TOKEN", "secret")

	cfg, err := config.Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	reg := registry.New()
	lookup, err := tools.NewFunc("lookup", "Looks up a value.", func(_ context.Context, in *lookupInput) (string, error) {
		return in.Key, nil
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(lookup))

	models := func(name string) (llms.Model, error) {
		return &staticModel{name: name}, nil
	}

	bound, err := cfg.BindAgents(reg, models)
	require.NoError(t, err)
	require.Len(t, bound, 2)
	assert.Equal(t, "analyst", bound["analyst"].Name())

	list, err := cfg.WorkflowAgents("report", bound)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "analyst", list[0].Name())
	assert.Equal(t, "reviewer", list[1].Name())

	// binding fails fast on unresolvable tools
	cfg.Agents[0].Tools = []string{"missing"}
	_, err = cfg.BindAgents(reg, models)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrToolNotFound))

	// and on unresolvable models
	cfg.Agents[0].Tools = []string{"lookup"}
	_, err = cfg.BindAgents(reg, func(string) (llms.Model, error) {
		return nil, errors.New("unknown model")
	})
	require.Error(t, err)
}
