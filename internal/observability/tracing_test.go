package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/quill/internal/log"
)

func TestSetupDefaultAgentHost(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{
		Environment: "test",
		ServiceName: "quill-test",
	}, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupShutdownIdempotent(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{
		AgentHost: "localhost:14318",
	}, log.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, shutdown(ctx))
	assert.NoError(t, shutdown(ctx))
}
