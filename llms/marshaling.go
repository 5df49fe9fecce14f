package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

type contentPartJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

type messageJSON struct {
	Role  Role              `json:"role"`
	Parts []contentPartJSON `json:"parts"`
}

// MarshalJSON implements json.Marshaler so message parts survive a
// round-trip through persistence.
func (m Message) MarshalJSON() ([]byte, error) {
	enc := messageJSON{
		Role:  m.Role,
		Parts: make([]contentPartJSON, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		switch typ := p.(type) {
		case TextContent:
			enc.Parts = append(enc.Parts, contentPartJSON{Type: "text", Text: typ.Text})
		case ToolCall:
			tc := typ
			enc.Parts = append(enc.Parts, contentPartJSON{Type: "tool_call", ToolCall: &tc})
		case ToolCallResponse:
			tr := typ
			enc.Parts = append(enc.Parts, contentPartJSON{Type: "tool_response", ToolResponse: &tr})
		default:
			return nil, errors.Newf("unsupported content part %T", p)
		}
	}
	return json.Marshal(enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(bs []byte) error {
	var dec messageJSON
	if err := json.Unmarshal(bs, &dec); err != nil {
		return err
	}
	m.Role = dec.Role
	m.Parts = make([]ContentPart, 0, len(dec.Parts))
	for _, p := range dec.Parts {
		switch p.Type {
		case "text":
			m.Parts = append(m.Parts, TextContent{Text: p.Text})
		case "tool_call":
			if p.ToolCall == nil {
				return errors.New("tool_call part without payload")
			}
			m.Parts = append(m.Parts, *p.ToolCall)
		case "tool_response":
			if p.ToolResponse == nil {
				return errors.New("tool_response part without payload")
			}
			m.Parts = append(m.Parts, *p.ToolResponse)
		default:
			return errors.Newf("unsupported content part type %q", p.Type)
		}
	}
	return nil
}
