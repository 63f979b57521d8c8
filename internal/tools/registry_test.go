package tools

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text" jsonschema_description:"Text to echo back"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func newEchoTool(t *testing.T, g *genkit.Genkit, name string) *Tool {
	t.Helper()

	tool, err := New(g, name, "Echo the given text back.",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			return echoOutput{Text: in.Text}, nil
		},
	)
	require.NoError(t, err)
	return tool
}

func TestRegistryDispatch(t *testing.T) {
	g := genkit.Init(context.Background())

	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool(t, g, "echo")))

	out, err := r.Dispatch(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, echoOutput{Text: "hello"}, out)
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Dispatch(context.Background(), "nope", map[string]any{})
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryDispatchInvalidArguments(t *testing.T) {
	g := genkit.Init(context.Background())

	executed := false
	tool, err := New(g, "strict", "Takes a string field.",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			executed = true
			return echoOutput{Text: in.Text}, nil
		},
	)
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.Register(tool))

	// Wrong type for "text": schema validation rejects the call before the
	// executor runs.
	_, err = r.Dispatch(context.Background(), "strict", map[string]any{"text": 42})
	require.ErrorIs(t, err, ErrInvalidArguments)
	assert.False(t, executed)
}

func TestRegistryDuplicateName(t *testing.T) {
	g := genkit.Init(context.Background())

	tool := newEchoTool(t, g, "dup")

	r := NewRegistry()
	require.NoError(t, r.Register(tool))

	err := r.Register(tool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRefs(t *testing.T) {
	g := genkit.Init(context.Background())

	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool(t, g, "first")))
	require.NoError(t, r.Register(newEchoTool(t, g, "second")))

	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.Refs(), 2)
}
