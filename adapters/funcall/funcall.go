// Package funcall adapts tool descriptors to function-calling model
// runtimes: tools are declared as native function definitions and the model
// returns structured tool-call requests.
package funcall

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/adapters"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/agentflow/schema"
	"github.com/effective-security/agentflow/tools"
	"github.com/effective-security/x/values"
)

// FrameworkName identifies this adapter.
const FrameworkName = "funcall"

// Adapter declares tools as native function definitions.
type Adapter struct {
	decls []llms.Tool
}

var _ adapters.Adapter = (*Adapter)(nil)

// New builds the adapter from the descriptor list. Descriptors whose
// parameter schema is not a top-level object fail with ErrUnsupportedSchema.
func New(descs []tools.Descriptor) (*Adapter, error) {
	decls := make([]llms.Tool, 0, len(descs))
	for _, d := range descs {
		m, err := schema.Normalize(d.Parameters)
		if err != nil {
			return nil, errors.WithMessagef(err, "tool %s", d.Name)
		}
		if typ, ok := m["type"].(string); ok && typ != "object" {
			return nil, errors.Mark(
				errors.Newf("tool %s: function declarations require an object schema, got %q", d.Name, typ),
				adapters.ErrUnsupportedSchema)
		}
		decls = append(decls, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  m,
			},
		})
	}
	return &Adapter{decls: decls}, nil
}

// Framework implements adapters.Adapter.
func (a *Adapter) Framework() string {
	return FrameworkName
}

// Declarations implements adapters.Adapter.
func (a *Adapter) Declarations() adapters.Declarations {
	return adapters.Declarations{
		Tools: slices.Clone(a.decls),
	}
}

// ParseToolCalls implements adapters.Adapter.
func (a *Adapter) ParseToolCalls(choice *llms.ContentChoice) ([]adapters.ToolCall, bool) {
	if choice == nil || len(choice.ToolCalls) == 0 {
		return nil, false
	}
	calls := make([]adapters.ToolCall, 0, len(choice.ToolCalls))
	for i, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		id := values.StringsCoalesce(tc.ID, fmt.Sprintf("%s_%d", tc.FunctionCall.Name, i))
		calls = append(calls, adapters.ToolCall{
			ID:        id,
			Name:      tc.FunctionCall.Name,
			Arguments: []byte(tc.FunctionCall.Arguments),
		})
	}
	return calls, len(calls) > 0
}

// FinalAnswer implements adapters.Adapter.
func (a *Adapter) FinalAnswer(choice *llms.ContentChoice) string {
	if choice == nil {
		return ""
	}
	return choice.Content
}

// FormatToolResult implements adapters.Adapter.
func (a *Adapter) FormatToolResult(res adapters.ToolResult) llms.Message {
	return llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: res.CallID,
		Name:       res.Name,
		Content:    res.Content,
		IsError:    res.IsError,
	})
}
