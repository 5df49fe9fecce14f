// Package graphflow adapts tool descriptors to graph-based execution
// frameworks, where tools are nodes and each model turn emits a JSON routing
// decision selecting the next node or the terminal state.
package graphflow

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/adapters"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/llmutils"
	"github.com/effective-security/agentflow/schema"
	"github.com/effective-security/agentflow/tools"
	"github.com/google/uuid"
)

// FrameworkName identifies this adapter.
const FrameworkName = "graphflow"

// EndNode is the terminal routing target.
const EndNode = "__end__"

// Adapter declares tools as graph node specs.
type Adapter struct {
	prompt string
}

var _ adapters.Adapter = (*Adapter)(nil)

type nodeSpec struct {
	Node        string `json:"node"`
	Description string `json:"description"`
	Params      any    `json:"params,omitempty"`
}

type decision struct {
	Next   string          `json:"next"`
	Args   json.RawMessage `json:"args,omitempty"`
	Answer string          `json:"answer,omitempty"`
}

// New builds the adapter from the descriptor list. Node parameter schemas
// must be union-free; oneOf/anyOf/allOf fail with ErrUnsupportedSchema.
func New(descs []tools.Descriptor) (*Adapter, error) {
	nodes := make([]nodeSpec, 0, len(descs))
	for _, d := range descs {
		m, err := schema.Normalize(d.Parameters)
		if err != nil {
			return nil, errors.WithMessagef(err, "tool %s", d.Name)
		}
		if key, found := findUnion(m); found {
			return nil, errors.Mark(
				errors.Newf("tool %s: schema uses %s, union types are not representable as graph node inputs", d.Name, key),
				adapters.ErrUnsupportedSchema)
		}
		nodes = append(nodes, nodeSpec{
			Node:        d.Name,
			Description: d.Description,
			Params:      m,
		})
	}

	var sb strings.Builder
	sb.WriteString("You are executing a graph. The following nodes are available:\n")
	sb.WriteString(llmutils.BackticksJSON(llmutils.ToJSONIndent(nodes)))
	sb.WriteString("\n\nEvery reply must be a single JSON object:\n")
	sb.WriteString(`{"next": "<node>", "args": {...}} to execute a node, or` + "\n")
	sb.WriteString(`{"next": "` + EndNode + `", "answer": "<final answer>"} to finish.` + "\n")

	return &Adapter{prompt: sb.String()}, nil
}

func findUnion(m map[string]any) (string, bool) {
	for _, key := range []string{"oneOf", "anyOf", "allOf"} {
		if _, ok := m[key]; ok {
			return key, true
		}
	}
	for _, raw := range m {
		switch v := raw.(type) {
		case map[string]any:
			if key, found := findUnion(v); found {
				return key, true
			}
		case []any:
			for _, item := range v {
				if sub, ok := item.(map[string]any); ok {
					if key, found := findUnion(sub); found {
						return key, true
					}
				}
			}
		}
	}
	return "", false
}

// Framework implements adapters.Adapter.
func (a *Adapter) Framework() string {
	return FrameworkName
}

// Declarations implements adapters.Adapter.
func (a *Adapter) Declarations() adapters.Declarations {
	return adapters.Declarations{
		Prompt: a.prompt,
	}
}

// ParseToolCalls implements adapters.Adapter. A routing decision selects at
// most one node per turn.
func (a *Adapter) ParseToolCalls(choice *llms.ContentChoice) ([]adapters.ToolCall, bool) {
	dec, ok := a.parseDecision(choice)
	if !ok || dec.Next == "" || dec.Next == EndNode {
		return nil, false
	}
	args := dec.Args
	if len(args) == 0 {
		args = []byte("{}")
	}
	return []adapters.ToolCall{{
		ID:        uuid.NewString(),
		Name:      dec.Next,
		Arguments: args,
	}}, true
}

// FinalAnswer implements adapters.Adapter.
func (a *Adapter) FinalAnswer(choice *llms.ContentChoice) string {
	if dec, ok := a.parseDecision(choice); ok && dec.Answer != "" {
		return dec.Answer
	}
	if choice == nil {
		return ""
	}
	return strings.TrimSpace(choice.Content)
}

// FormatToolResult implements adapters.Adapter. Node outputs flow back into
// the graph state as JSON.
func (a *Adapter) FormatToolResult(res adapters.ToolResult) llms.Message {
	out := map[string]any{
		"node":   res.Name,
		"output": res.Content,
	}
	if res.IsError {
		out["error"] = true
	}
	return llms.MessageFromTextParts(llms.RoleTool, llmutils.ToJSON(out))
}

func (a *Adapter) parseDecision(choice *llms.ContentChoice) (*decision, bool) {
	if choice == nil || choice.Content == "" {
		return nil, false
	}
	var dec decision
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(choice.Content)), &dec); err != nil {
		return nil, false
	}
	return &dec, true
}
