// Package crew adapts tool descriptors to role-based multi-agent
// frameworks, where tools are declared in the role prompt and the model
// requests one action at a time in Action / Action Input form.
package crew

import (
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
const FrameworkName = "crew"

const (
	actionPrefix      = "Action:"
	actionInputPrefix = "Action Input:"
	finalAnswerPrefix = "Final Answer:"
)

// Adapter declares tools inside the role prompt.
type Adapter struct {
	prompt string
}

var _ adapters.Adapter = (*Adapter)(nil)

type promptTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// New builds the adapter from the descriptor list. The prompt-declared
// argument dialect is flat: properties must be scalars or arrays of scalars,
// nested objects fail with ErrUnsupportedSchema.
func New(descs []tools.Descriptor) (*Adapter, error) {
	declared := make([]promptTool, 0, len(descs))
	for _, d := range descs {
		m, err := schema.Normalize(d.Parameters)
		if err != nil {
			return nil, errors.WithMessagef(err, "tool %s", d.Name)
		}
		if err := checkFlatSchema(d.Name, m); err != nil {
			return nil, err
		}
		declared = append(declared, promptTool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  m,
		})
	}

	var sb strings.Builder
	sb.WriteString("You have access to the following tools:\n")
	sb.WriteString(llmutils.BackticksJSON(llmutils.ToJSONIndent(declared)))
	sb.WriteString("\n\nTo use a tool, reply with exactly two lines:\n")
	sb.WriteString(actionPrefix + " <tool name>\n")
	sb.WriteString(actionInputPrefix + " <JSON object with the tool arguments>\n")
	sb.WriteString("\nWhen you know the final answer, reply with:\n")
	sb.WriteString(finalAnswerPrefix + " <your answer>\n")

	return &Adapter{prompt: sb.String()}, nil
}

func checkFlatSchema(name string, m map[string]any) error {
	props, _ := m["properties"].(map[string]any)
	for field, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch typ, _ := prop["type"].(string); typ {
		case "object":
			return errors.Mark(
				errors.Newf("tool %s: parameter %s is a nested object, not representable in the flat action dialect", name, field),
				adapters.ErrUnsupportedSchema)
		case "array":
			items, _ := prop["items"].(map[string]any)
			if itemType, _ := items["type"].(string); itemType == "object" || itemType == "array" {
				return errors.Mark(
					errors.Newf("tool %s: parameter %s is an array of %ss, not representable in the flat action dialect", name, field, itemType),
					adapters.ErrUnsupportedSchema)
			}
		}
	}
	return nil
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

// ParseToolCalls implements adapters.Adapter. Role-based frameworks request
// a single action per turn.
func (a *Adapter) ParseToolCalls(choice *llms.ContentChoice) ([]adapters.ToolCall, bool) {
	if choice == nil {
		return nil, false
	}
	content := choice.Content

	idx := strings.Index(content, actionPrefix)
	if idx < 0 {
		return nil, false
	}
	rest := content[idx+len(actionPrefix):]

	var name, args string
	if inputIdx := strings.Index(rest, actionInputPrefix); inputIdx >= 0 {
		name = strings.TrimSpace(rest[:inputIdx])
		args = strings.TrimSpace(rest[inputIdx+len(actionInputPrefix):])
	} else {
		name = strings.TrimSpace(firstLine(rest))
	}
	if name == "" {
		return nil, false
	}

	raw := llmutils.CleanJSON([]byte(args))
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return []adapters.ToolCall{{
		ID:        uuid.NewString(),
		Name:      name,
		Arguments: raw,
	}}, true
}

// FinalAnswer implements adapters.Adapter.
func (a *Adapter) FinalAnswer(choice *llms.ContentChoice) string {
	if choice == nil {
		return ""
	}
	content := choice.Content
	if idx := strings.Index(content, finalAnswerPrefix); idx >= 0 {
		return strings.TrimSpace(content[idx+len(finalAnswerPrefix):])
	}
	return strings.TrimSpace(content)
}

// FormatToolResult implements adapters.Adapter. Results come back as
// observations in the role conversation.
func (a *Adapter) FormatToolResult(res adapters.ToolResult) llms.Message {
	label := "Observation"
	if res.IsError {
		label = "Observation (error)"
	}
	return llms.MessageFromTextParts(llms.RoleTool, label+": "+res.Content)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
