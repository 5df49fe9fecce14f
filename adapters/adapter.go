// Package adapters bridges the registry's framework-neutral tool
// descriptors into the calling conventions of concrete agent execution
// frameworks, and parses each framework's tool-call requests back into
// (tool name, arguments) pairs the registry can validate.
package adapters

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/llms"
)

// ErrUnsupportedSchema is returned at adapter construction when a descriptor's
// parameter schema cannot be represented in the target framework's schema
// dialect. Surfacing this at construction keeps integration gaps out of the
// tool-call loop.
var ErrUnsupportedSchema = errors.New("unsupported schema")

// ToolCall is a framework-neutral tool-call request parsed from a model
// response.
type ToolCall struct {
	// ID identifies the call within the current turn.
	ID string `json:"id"`
	// Name is the registry tool name.
	Name string `json:"name"`
	// Arguments is the JSON-encoded argument object.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of one tool call, ready to be rendered back into
// the framework's conversation format.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Declarations is the framework-native declaration set for a list of tool
// descriptors. Function-calling runtimes consume Tools; prompt-declared
// frameworks consume the Prompt fragment.
type Declarations struct {
	Tools  []llms.Tool
	Prompt string
}

// Adapter translates between the registry's descriptors and one execution
// framework. Implementations are total functions of the descriptor list
// given at construction: the same list always yields the same declaration
// set, and nothing is cached across registry snapshots.
type Adapter interface {
	// Framework returns the identifier of the target framework.
	Framework() string
	// Declarations returns the framework-native tool declarations.
	Declarations() Declarations
	// ParseToolCalls extracts tool-call requests from a response choice.
	// The second return value reports whether the choice requested any.
	ParseToolCalls(choice *llms.ContentChoice) ([]ToolCall, bool)
	// FinalAnswer extracts the user-facing answer from a terminal choice.
	FinalAnswer(choice *llms.ContentChoice) string
	// FormatToolResult renders a tool outcome as a conversation message in
	// the framework's expected shape.
	FormatToolResult(res ToolResult) llms.Message
}
