package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-plugin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRPCServerInstantiate(t *testing.T) {
	t.Run("credential accepted", func(t *testing.T) {
		server := &AgentRPCServer{Factory: Factory{
			WithCredential: func(apiKey string) (Agent, error) { return &credentialAgent{apiKey: apiKey}, nil },
		}}
		var resp InstantiateResp
		require.NoError(t, server.Instantiate(&InstantiateArgs{APIKey: "k", WithCredential: true}, &resp))
		assert.False(t, resp.Rejected)
		assert.Empty(t, resp.Error)

		var out ExecuteResp
		require.NoError(t, server.Execute(&ExecuteArgs{TaskConfig: map[string]any{"topic": "t"}}, &out))
		assert.Equal(t, "k", out.Result["api_key"])
		assert.Equal(t, "t", out.Result["topic"])
	})

	t.Run("no credential constructor is a rejection", func(t *testing.T) {
		server := &AgentRPCServer{Factory: Factory{
			New: func() (Agent, error) { return &credentialAgent{}, nil },
		}}
		var resp InstantiateResp
		require.NoError(t, server.Instantiate(&InstantiateArgs{APIKey: "k", WithCredential: true}, &resp))
		assert.True(t, resp.Rejected)

		resp = InstantiateResp{}
		require.NoError(t, server.Instantiate(&InstantiateArgs{}, &resp))
		assert.False(t, resp.Rejected)
		assert.Empty(t, resp.Error)
	})

	t.Run("constructor failure", func(t *testing.T) {
		server := &AgentRPCServer{Factory: Factory{
			New: func() (Agent, error) { return nil, errors.New("no config") },
		}}
		var resp InstantiateResp
		require.NoError(t, server.Instantiate(&InstantiateArgs{}, &resp))
		assert.False(t, resp.Rejected)
		assert.Equal(t, "no config", resp.Error)
	})
}

func TestAgentRPCServerExecute(t *testing.T) {
	t.Run("before instantiate", func(t *testing.T) {
		var resp ExecuteResp
		require.NoError(t, (&AgentRPCServer{}).Execute(&ExecuteArgs{}, &resp))
		assert.Equal(t, "agent not instantiated", resp.Error)
	})

	t.Run("execute error", func(t *testing.T) {
		server := &AgentRPCServer{impl: AgentFunc(func(ctx context.Context, taskConfig map[string]any) (map[string]any, error) {
			return nil, errors.New("failed")
		})}
		var resp ExecuteResp
		require.NoError(t, server.Execute(&ExecuteArgs{}, &resp))
		assert.Equal(t, "failed", resp.Error)
	})
}

// dispenseRPCAgent serves factory over an in-memory connection and returns
// the host-side client for it
func dispenseRPCAgent(t *testing.T, factory Factory) *AgentRPCClient {
	t.Helper()
	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		"NotesAgent": &AgentRPCPlugin{Factory: factory},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense("NotesAgent")
	require.NoError(t, err)
	rpcAgent, ok := raw.(*AgentRPCClient)
	require.True(t, ok)
	return rpcAgent
}

func TestAgentRPCClientOverConnection(t *testing.T) {
	loader := NewLoader(LoaderConfig{APIKey: "sk-wire", Logger: zerolog.Nop()})

	t.Run("credential accepted", func(t *testing.T) {
		rpcAgent := dispenseRPCAgent(t, Factory{
			WithCredential: func(apiKey string) (Agent, error) { return &credentialAgent{apiKey: apiKey}, nil },
		})

		agent, err := loader.instantiate(rpcAgent.Factory())
		require.NoError(t, err)

		result, err := agent.Execute(context.Background(), map[string]any{"topic": "release"})
		require.NoError(t, err)
		assert.Equal(t, "sk-wire", result["api_key"])
		assert.Equal(t, "release", result["topic"])
	})

	t.Run("credential rejected falls back to New", func(t *testing.T) {
		rpcAgent := dispenseRPCAgent(t, Factory{
			New: func() (Agent, error) { return &credentialAgent{apiKey: "none"}, nil },
		})

		agent, err := loader.instantiate(rpcAgent.Factory())
		require.NoError(t, err)

		result, err := agent.Execute(context.Background(), map[string]any{"topic": "fallback"})
		require.NoError(t, err)
		assert.Equal(t, "none", result["api_key"])
		assert.Equal(t, "fallback", result["topic"])
	})

	t.Run("nested results", func(t *testing.T) {
		rpcAgent := dispenseRPCAgent(t, Factory{
			New: func() (Agent, error) {
				return AgentFunc(func(ctx context.Context, taskConfig map[string]any) (map[string]any, error) {
					return map[string]any{
						"files": []string{"a.md", "b.md"},
						"stats": map[string]interface{}{"count": taskConfig["count"]},
					}, nil
				}), nil
			},
		})

		agent, err := loader.instantiate(rpcAgent.Factory())
		require.NoError(t, err)

		result, err := agent.Execute(context.Background(), map[string]any{"count": 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.md", "b.md"}, result["files"])
		assert.Equal(t, map[string]interface{}{"count": 2}, result["stats"])
	})

	t.Run("constructor error crosses the wire", func(t *testing.T) {
		rpcAgent := dispenseRPCAgent(t, Factory{
			New: func() (Agent, error) { return nil, errors.New("no config") },
		})

		_, err := loader.instantiate(rpcAgent.Factory())
		require.Error(t, err)
		assert.Equal(t, "no config", err.Error())
	})

	t.Run("execute error crosses the wire", func(t *testing.T) {
		rpcAgent := dispenseRPCAgent(t, Factory{
			New: func() (Agent, error) {
				return AgentFunc(func(ctx context.Context, taskConfig map[string]any) (map[string]any, error) {
					return nil, errors.New("failed")
				}), nil
			},
		})

		agent, err := loader.instantiate(rpcAgent.Factory())
		require.NoError(t, err)
		_, err = agent.Execute(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, "failed", err.Error())
	})

	t.Run("cancelled context", func(t *testing.T) {
		rpcAgent := dispenseRPCAgent(t, Factory{
			New: func() (Agent, error) { return &credentialAgent{}, nil },
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := rpcAgent.Execute(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
