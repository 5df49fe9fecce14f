package tools_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"title=Text,description=Text to echo"`
}

func Test_NewFunc(t *testing.T) {
	t.Parallel()

	d, err := tools.NewFunc("echo", "Echoes the given text.", func(_ context.Context, in *echoInput) (string, error) {
		return in.Text, nil
	})
	require.NoError(t, err)
	require.NoError(t, d.Validate())
	assert.Equal(t, "echo", d.Name)
	assert.Equal(t, tools.OriginNative, d.Origin)
	assert.False(t, d.IsRemote())
	assert.NotNil(t, d.Parameters)

	out, err := d.Handler(t.Context(), []byte(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	// fenced arguments are cleaned before unmarshaling
	out, err = d.Handler(t.Context(), []byte("```json\n{\"text\":\"fenced\"}\n```"))
	require.NoError(t, err)
	assert.Equal(t, "fenced", out)

	_, err = d.Handler(t.Context(), []byte(`{"text":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))
}

func Test_Descriptor_Validate(t *testing.T) {
	t.Parallel()

	assert.Error(t, tools.Descriptor{}.Validate())
	assert.Error(t, tools.Descriptor{Name: "x", Origin: tools.OriginNative}.Validate())
	assert.Error(t, tools.Descriptor{Name: "x", Origin: tools.OriginRemote}.Validate())
	assert.Error(t, tools.Descriptor{Name: "x", Origin: tools.Origin("weird")}.Validate())

	remote := tools.Descriptor{
		Name:         "x",
		Origin:       tools.OriginRemote,
		ConnectionID: "host",
		RemoteName:   "x",
	}
	assert.NoError(t, remote.Validate())
}

func Test_GetDescriptions(t *testing.T) {
	t.Parallel()

	d, err := tools.NewFunc("echo", "Echoes the given text.", func(_ context.Context, in *echoInput) (string, error) {
		return in.Text, nil
	})
	require.NoError(t, err)

	out := tools.GetDescriptions(d)
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "Echoes the given text.")
	assert.Contains(t, out, "```json")
}
