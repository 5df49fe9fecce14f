package schema_test

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryInput struct {
	Query string `json:"query" jsonschema:"title=Query,description=Query to run"`
	Limit int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Max rows"`
}

func Test_Normalize(t *testing.T) {
	t.Parallel()

	// nil parameters mean "any object"
	m, err := schema.Normalize(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "object"}, m)

	// wire-form schemas pass through
	wire := map[string]any{"type": "object", "properties": map[string]any{}}
	m, err = schema.Normalize(wire)
	require.NoError(t, err)
	assert.Equal(t, wire, m)

	// reflected schemas are converted to their canonical map form
	sc, err := schema.New(reflect.TypeOf(queryInput{}))
	require.NoError(t, err)
	m, err = schema.Normalize(sc.Parameters)
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
}

func Test_ValidateArguments(t *testing.T) {
	t.Parallel()

	sc, err := schema.New(reflect.TypeOf(queryInput{}))
	require.NoError(t, err)

	require.NoError(t, schema.ValidateArguments(sc.Parameters, []byte(`{"query":"select 1"}`)))
	require.NoError(t, schema.ValidateArguments(sc.Parameters, []byte(`{"query":"select 1","limit":10}`)))

	// missing required field
	err = schema.ValidateArguments(sc.Parameters, []byte(`{"limit":10}`))
	require.Error(t, err)
	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	require.NotEmpty(t, verr.Violations)
	assert.Contains(t, err.Error(), "query")

	// wrong type
	err = schema.ValidateArguments(sc.Parameters, []byte(`{"query":1}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &verr))

	// empty arguments validate as an empty object
	err = schema.ValidateArguments(sc.Parameters, nil)
	require.Error(t, err) // query is required
	require.NoError(t, schema.ValidateArguments(nil, nil))

	// invalid JSON is a document-level violation
	err = schema.ValidateArguments(sc.Parameters, []byte(`{"query":`))
	require.Error(t, err)
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "(root)", verr.Violations[0].Path)
}
