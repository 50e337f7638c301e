package plugin

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

func init() {
	// Nested task configs and results travel as interface values
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// Handshake is used to verify that the plugin and host are compatible
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ORCHESTRATOR_PLUGIN",
	MagicCookieValue: "orchestrator-agent-v1",
}

// Serve runs a plugin executable exposing the given implementations by name.
// It is called from the main function of a plugin binary and never returns.
func Serve(impls map[string]Factory) {
	set := plugin.PluginSet{}
	for name, factory := range impls {
		set[name] = &AgentRPCPlugin{Factory: factory}
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         set,
	})
}

// AgentRPCPlugin is the implementation of plugin.Plugin for RPC
type AgentRPCPlugin struct {
	// Factory is only set on the plugin side
	Factory Factory
}

func (p *AgentRPCPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &AgentRPCServer{Factory: p.Factory}, nil
}

func (p *AgentRPCPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &AgentRPCClient{client: c}, nil
}

// InstantiateArgs are the arguments for the Instantiate RPC call
type InstantiateArgs struct {
	APIKey         string
	WithCredential bool
}

// InstantiateResp is the response for the Instantiate RPC call
type InstantiateResp struct {
	Rejected bool
	Error    string
}

// ExecuteArgs are the arguments for the Execute RPC call
type ExecuteArgs struct {
	TaskConfig map[string]any
}

// ExecuteResp is the response for the Execute RPC call
type ExecuteResp struct {
	Result map[string]any
	Error  string
}

// AgentRPCServer is the RPC server that AgentRPCClient talks to
type AgentRPCServer struct {
	Factory Factory
	impl    Agent
}

func (s *AgentRPCServer) Instantiate(args *InstantiateArgs, resp *InstantiateResp) error {
	var (
		impl Agent
		err  error
	)

	switch {
	case args.WithCredential && s.Factory.WithCredential != nil:
		impl, err = s.Factory.WithCredential(args.APIKey)
	case args.WithCredential:
		err = ErrCredentialRejected
	case s.Factory.New != nil:
		impl, err = s.Factory.New()
	default:
		err = ErrNoFactory
	}

	if err != nil {
		resp.Rejected = errors.Is(err, ErrCredentialRejected)
		resp.Error = err.Error()
		return nil
	}

	s.impl = impl
	return nil
}

func (s *AgentRPCServer) Execute(args *ExecuteArgs, resp *ExecuteResp) error {
	if s.impl == nil {
		resp.Error = "agent not instantiated"
		return nil
	}

	result, err := s.impl.Execute(context.Background(), args.TaskConfig)
	resp.Result = result
	if err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// AgentRPCClient is the RPC client that talks to AgentRPCServer
type AgentRPCClient struct {
	client *rpc.Client
}

func (c *AgentRPCClient) instantiate(apiKey string, withCredential bool) error {
	var resp InstantiateResp
	err := c.client.Call("Plugin.Instantiate", &InstantiateArgs{APIKey: apiKey, WithCredential: withCredential}, &resp)
	if err != nil {
		return err
	}
	if resp.Rejected {
		return ErrCredentialRejected
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

// Execute implements Agent over RPC. The remote call is not cancellable;
// ctx is only checked before the call is made.
func (c *AgentRPCClient) Execute(ctx context.Context, taskConfig map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resp ExecuteResp
	if err := c.client.Call("Plugin.Execute", &ExecuteArgs{TaskConfig: taskConfig}, &resp); err != nil {
		return nil, fmt.Errorf("plugin RPC failed: %w", err)
	}
	if resp.Error != "" {
		return resp.Result, errors.New(resp.Error)
	}
	return resp.Result, nil
}

// Factory exposes the remote implementation through the same two-step
// instantiation used for in-process agents.
func (c *AgentRPCClient) Factory() Factory {
	return Factory{
		WithCredential: func(apiKey string) (Agent, error) {
			if err := c.instantiate(apiKey, true); err != nil {
				return nil, err
			}
			return c, nil
		},
		New: func() (Agent, error) {
			if err := c.instantiate("", false); err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}
