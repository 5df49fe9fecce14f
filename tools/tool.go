package tools

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ErrFailedUnmarshalInput is returned by typed tool handlers when the
// provided arguments cannot be unmarshaled into the tool's input type.
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// Origin tags where a tool's implementation lives.
type Origin string

const (
	// OriginNative is a tool implemented in-process.
	OriginNative Origin = "native"
	// OriginRemote is a tool discovered from a remote capability host.
	OriginRemote Origin = "remote"
)

// Handler executes a native tool with JSON-encoded arguments.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Descriptor is a single callable capability with a schema. Native
// descriptors carry an in-process Handler; remote descriptors carry the
// (ConnectionID, RemoteName) pair resolved by the remote capability client.
type Descriptor struct {
	// Name is the unique name of the tool within a registry.
	Name string `json:"name"`
	// Description is the human-readable description of the tool, to be used
	// in the prompt. Should not exceed the model limit.
	Description string `json:"description"`
	// Parameters is the JSON-Schema-marshalable parameters definition.
	Parameters any `json:"parameters,omitempty"`
	// Origin tags whether the tool is native or remote.
	Origin Origin `json:"origin"`

	// Handler is the in-process callable, set for native tools only.
	Handler Handler `json:"-"`

	// ConnectionID identifies the remote connection, set for remote tools only.
	ConnectionID string `json:"connection_id,omitempty"`
	// RemoteName is the tool name advertised by the remote host.
	RemoteName string `json:"remote_name,omitempty"`
}

// IsRemote reports whether the descriptor is backed by a remote host.
func (d Descriptor) IsRemote() bool {
	return d.Origin == OriginRemote
}

// Validate checks the descriptor's internal consistency.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return errors.New("tool name must not be empty")
	}
	switch d.Origin {
	case OriginNative:
		if d.Handler == nil {
			return errors.Newf("native tool %s has no handler", d.Name)
		}
	case OriginRemote:
		if d.ConnectionID == "" || d.RemoteName == "" {
			return errors.Newf("remote tool %s has no connection binding", d.Name)
		}
	default:
		return errors.Newf("tool %s has unknown origin %q", d.Name, d.Origin)
	}
	return nil
}
