// Package config loads the declarative description of remote capability
// hosts, agents and workflows.
package config

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/agents"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/registry"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

// Config describes the process setup: which capability hosts to connect,
// which agents exist and how workflows compose them.
type Config struct {
	// RemoteHosts specifies the capability hosts to discover tools from.
	RemoteHosts []RemoteHost `json:"remote_hosts,omitempty" yaml:"remote_hosts,omitempty" validate:"dive"`
	// Agents specifies the agent definitions.
	Agents []Agent `json:"agents" yaml:"agents" validate:"required,min=1,dive"`
	// Workflows specifies named agent compositions.
	Workflows []Workflow `json:"workflows,omitempty" yaml:"workflows,omitempty" validate:"dive"`
}

// RemoteHost describes one capability host connection.
type RemoteHost struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	// Token is the bearer token, supports ${ENV} expansion.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// Override allows this host's tools to shadow native tools of the
	// same name.
	Override bool `json:"override,omitempty" yaml:"override,omitempty"`
}

// Agent describes one agent definition.
type Agent struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Role is the system prompt describing the agent's specialty.
	Role string `json:"role" yaml:"role" validate:"required"`
	// Model names the model to bind, resolved by the caller's factory.
	Model string `json:"model" yaml:"model" validate:"required"`
	// Tools lists the registry tool names the agent may call.
	Tools []string `json:"tools" yaml:"tools" validate:"required,min=1"`
}

// Workflow describes a named composition of agents.
type Workflow struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Mode selects the composition: sequential or fan_out.
	Mode   string   `json:"mode" yaml:"mode" validate:"required,oneof=sequential fan_out"`
	Agents []string `json:"agents" yaml:"agents" validate:"required,min=1"`
}

// Load reads the configuration from a YAML or JSON file, expanding
// environment variables, and validates it.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its declared constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.WithMessage(err, "invalid configuration")
	}

	known := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if known[a.Name] {
			return errors.Newf("duplicate agent %s", a.Name)
		}
		known[a.Name] = true
	}
	for _, w := range c.Workflows {
		for _, name := range w.Agents {
			if !known[name] {
				return errors.Newf("workflow %s references unknown agent %s", w.Name, name)
			}
		}
	}
	return nil
}

// Agent returns the agent configuration by name.
func (c *Config) Agent(name string) (*Agent, bool) {
	for i := range c.Agents {
		if c.Agents[i].Name == name {
			return &c.Agents[i], true
		}
	}
	return nil, false
}

// Workflow returns the workflow configuration by name.
func (c *Config) Workflow(name string) (*Workflow, bool) {
	for i := range c.Workflows {
		if c.Workflows[i].Name == name {
			return &c.Workflows[i], true
		}
	}
	return nil, false
}

// ModelProvider resolves a configured model name into a model runtime.
type ModelProvider func(name string) (llms.Model, error)

// BindAgents constructs and binds every configured agent against the
// registry. Binding fails fast on the first unresolvable tool or model.
func (c *Config) BindAgents(reg *registry.Registry, models ModelProvider) (map[string]*agents.BoundAgent, error) {
	bound := make(map[string]*agents.BoundAgent, len(c.Agents))
	for _, a := range c.Agents {
		model, err := models(a.Model)
		if err != nil {
			return nil, errors.WithMessagef(err, "agent %s: model %s", a.Name, a.Model)
		}
		def := agents.Definition{
			Name:      a.Name,
			Role:      a.Role,
			ToolNames: a.Tools,
			Model:     model,
		}
		ba, err := def.Bind(reg)
		if err != nil {
			return nil, err
		}
		bound[a.Name] = ba
	}
	return bound, nil
}

// WorkflowAgents resolves a workflow's agent list against the bound set,
// preserving the configured order.
func (c *Config) WorkflowAgents(name string, bound map[string]*agents.BoundAgent) ([]*agents.BoundAgent, error) {
	wf, ok := c.Workflow(name)
	if !ok {
		return nil, errors.Newf("workflow %s not found", name)
	}
	list := make([]*agents.BoundAgent, 0, len(wf.Agents))
	for _, agentName := range wf.Agents {
		ba, ok := bound[agentName]
		if !ok {
			return nil, errors.Newf("workflow %s: agent %s is not bound", name, agentName)
		}
		list = append(list, ba)
	}
	return list, nil
}
