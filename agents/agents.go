// Package agents defines agent roles: a named role bound to a model and a
// subset of registry tools.
package agents

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/registry"
	"github.com/effective-security/agentflow/tools"
)

// Definition describes an agent before binding: a name, a free-text role
// used as the system prompt, the tool names it may call, and its model.
// The core does not interpret the role text or the model identity.
type Definition struct {
	// Name is the agent identifier.
	Name string
	// Role is the system prompt describing the agent's specialty.
	Role string
	// ToolNames is the ordered list of registry tools the agent may call.
	ToolNames []string
	// Model is the bound model runtime.
	Model llms.Model
}

// Validate checks the definition's internal consistency.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("agent name must not be empty")
	}
	if d.Model == nil {
		return errors.Newf("agent %s has no model", d.Name)
	}
	return nil
}

// Bind resolves every tool name against the registry and returns an
// immutable bound agent. An unresolvable name fails fast with the registry's
// not-found error, annotated with the agent name.
func (d Definition) Bind(reg *registry.Registry) (*BoundAgent, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	descs := make([]tools.Descriptor, 0, len(d.ToolNames))
	for _, name := range d.ToolNames {
		desc, err := reg.Resolve(name)
		if err != nil {
			return nil, errors.WithMessagef(err, "agent %s", d.Name)
		}
		descs = append(descs, desc)
	}

	return &BoundAgent{
		def:   d,
		descs: descs,
	}, nil
}

// BoundAgent is an agent definition whose tool subset has been resolved.
// It is immutable after construction and safe for concurrent use.
type BoundAgent struct {
	def   Definition
	descs []tools.Descriptor
}

// Name returns the agent identifier.
func (a *BoundAgent) Name() string {
	return a.def.Name
}

// Role returns the agent's role text.
func (a *BoundAgent) Role() string {
	return a.def.Role
}

// Model returns the agent's model runtime.
func (a *BoundAgent) Model() llms.Model {
	return a.def.Model
}

// Tools returns the agent's resolved tool descriptors in the order they were
// named in the definition.
func (a *BoundAgent) Tools() []tools.Descriptor {
	return slices.Clone(a.descs)
}
