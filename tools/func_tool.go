package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/llmutils"
	"github.com/effective-security/agentflow/schema"
)

// NewFunc creates a native tool descriptor from a typed function. The
// parameter schema is reflected from the input type I.
func NewFunc[I any](name, description string, fn func(ctx context.Context, in *I) (string, error)) (Descriptor, error) {
	var def I
	sc, err := schema.New(reflect.TypeOf(def))
	if err != nil {
		return Descriptor{}, errors.WithMessagef(err, "failed to create schema for tool %s", name)
	}

	return Descriptor{
		Name:        name,
		Description: description,
		Parameters:  sc.Parameters,
		Origin:      OriginNative,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in I
			if err := json.Unmarshal(llmutils.CleanJSON(args), &in); err != nil {
				return "", errors.WithStack(ErrFailedUnmarshalInput)
			}
			return fn(ctx, &in)
		},
	}, nil
}

type toolDescription struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools"`
}

// GetDescriptions renders the name and description of each tool as a fenced
// JSON block, suitable for inclusion in a prompt.
func GetDescriptions(list ...Descriptor) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name,
			Description: tool.Description,
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
