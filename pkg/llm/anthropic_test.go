package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAnthropicClient_RequiresModel(t *testing.T) {
	_, err := NewAnthropicClient(Config{APIKey: "test-key"}, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")
}

func TestNewAnthropicClient_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient(Config{Model: "claude-sonnet-4-0"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is required")
}

func TestNewAnthropicClient_DefaultEndpoint(t *testing.T) {
	client, err := NewAnthropicClient(Config{Model: "claude-sonnet-4-0", APIKey: "test-key"}, nil)

	require.NoError(t, err)
	assert.Equal(t, anthropicDefaultEndpoint, client.GetEndpoint())
	assert.Equal(t, "claude-sonnet-4-0", client.GetModel())
}

func TestNewAnthropicClient_CustomEndpointTrimsSlash(t *testing.T) {
	client, err := NewAnthropicClient(Config{
		Model:    "claude-sonnet-4-0",
		APIKey:   "test-key",
		Endpoint: "https://proxy.internal/anthropic/",
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "https://proxy.internal/anthropic", client.GetEndpoint())
}
