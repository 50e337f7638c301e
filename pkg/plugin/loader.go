package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/harun/orchestrator/internal/observability"
	"github.com/harun/orchestrator/internal/tracing"
	"github.com/harun/orchestrator/pkg/sandbox"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultHostVersion is checked against AGENT.json requires constraints
// when LoaderConfig.HostVersion is empty
const DefaultHostVersion = "0.1.0"

// LoaderConfig configures a Loader
type LoaderConfig struct {
	Registry *Registry

	// APIKey is the shared credential offered to implementations first
	APIKey string

	Logger      zerolog.Logger
	HostVersion string

	// StartTimeout bounds the handshake with a plugin executable
	StartTimeout time.Duration
}

// Loader resolves plugin descriptors to implementations and runs them
type Loader struct {
	registry     *Registry
	metadata     *MetadataLoader
	apiKey       string
	hostVersion  string
	startTimeout time.Duration
	logger       zerolog.Logger
}

// NewLoader creates a new plugin loader
func NewLoader(cfg LoaderConfig) *Loader {
	observability.EnsureRegistered()

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	hostVersion := cfg.HostVersion
	if hostVersion == "" {
		hostVersion = DefaultHostVersion
	}
	startTimeout := cfg.StartTimeout
	if startTimeout == 0 {
		startTimeout = time.Minute
	}

	return &Loader{
		registry:     registry,
		metadata:     NewMetadataLoader(cfg.Logger),
		apiKey:       cfg.APIKey,
		hostVersion:  hostVersion,
		startTimeout: startTimeout,
		logger:       cfg.Logger.With().Str("component", "plugin-loader").Logger(),
	}
}

// Registry returns the loader's registry
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Metadata returns the loader's metadata cache
func (l *Loader) Metadata() *MetadataLoader {
	return l.metadata
}

// Run resolves the descriptor, executes it with taskConfig and returns the
// result mapping. Resolution and execution failures are returned as
// {status: "error", message}; Run never returns an error.
func (l *Loader) Run(ctx context.Context, descriptor AgentDescriptor, taskConfig map[string]any) map[string]any {
	return l.Invoke(ctx, descriptor, taskConfig).Result
}

// Invoke is Run returning the full invocation record
func (l *Loader) Invoke(ctx context.Context, descriptor AgentDescriptor, taskConfig map[string]any) Invocation {
	if taskConfig == nil {
		taskConfig = map[string]any{}
	}

	invocation := Invocation{
		ID:         newInvocationID(),
		AgentID:    descriptor.ID,
		TaskConfig: taskConfig,
		StartedAt:  time.Now(),
	}

	ctx = tracing.PropagateToPlugin(ctx, descriptor.ID, invocation.ID)
	ctx, span := tracing.StartSpan(
		ctx,
		tracing.TracerPlugin,
		"plugin.run",
		attribute.String("agent_id", descriptor.ID),
		attribute.String("invocation_id", invocation.ID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, l.logger)

	result, err := l.execute(ctx, descriptor, taskConfig, logger)
	if err != nil {
		tracing.RecordError(span, err)
		result = errorResult(err)

		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			logger.Warn().
				Str("stage", string(loadErr.Stage)).
				Err(err).
				Msg("Plugin load failed")
		} else {
			logger.Warn().Err(err).Msg("Plugin execution failed")
		}
	}

	invocation.Result = result
	invocation.Duration = time.Since(invocation.StartedAt)

	status := invocation.Status()
	if status == "" {
		status = "unknown"
	}
	span.SetAttributes(attribute.String("status", status))
	observability.RecordPluginRun(descriptor.ID, invocation.Duration, status)
	observability.RecordPluginAudit(ctx, descriptor.ID, status, map[string]interface{}{
		"invocation_id": invocation.ID,
		"path":          descriptor.Path,
	})

	logger.Info().
		Str("status", status).
		Dur("duration", invocation.Duration).
		Msg("Plugin run finished")

	return invocation
}

func (l *Loader) execute(ctx context.Context, descriptor AgentDescriptor, taskConfig map[string]any, logger zerolog.Logger) (result map[string]any, err error) {
	if !descriptor.IsPlugin() {
		return nil, loadError(descriptor.ID, StageArtifact, nil, "Agent %s is not a plugin (kind %s)", descriptor.ID, descriptor.Kind)
	}

	// Locate the artifact
	info, statErr := os.Stat(descriptor.Path)
	if statErr != nil || !info.IsDir() {
		return nil, loadError(descriptor.ID, StageArtifact, nil, "Agent artifact not found at: %s", descriptor.Path)
	}

	metadata, metaErr := l.metadata.Load(descriptor.Path)
	if metaErr != nil {
		return nil, loadError(descriptor.ID, StageMetadata, metaErr, "Invalid %s for agent %s", MetadataFile, descriptor.ID)
	}
	if err := metadata.CheckCompatibility(l.hostVersion); err != nil {
		return nil, loadError(descriptor.ID, StageMetadata, err, "Agent %s is incompatible with this host", descriptor.ID)
	}

	name := metadata.ImplementationName()
	if name == "" {
		name = DeriveImplementationName(descriptor.ID)
	}
	logger.Debug().Str("implementation", name).Msg("Resolving plugin implementation")

	var factory Factory
	if metadata != nil && metadata.Main != "" {
		client, rpcAgent, launchErr := l.launch(descriptor, metadata.Main, name)
		if launchErr != nil {
			return nil, launchErr
		}
		defer client.Kill()
		factory = rpcAgent.Factory()
	} else {
		var ok bool
		factory, ok = l.resolve(descriptor.ID, name)
		if !ok {
			return nil, loadError(descriptor.ID, StageResolve, nil, "Agent implementation '%s' not found", name)
		}
	}

	agent, instErr := l.safeInstantiate(factory)
	if instErr != nil {
		return nil, loadError(descriptor.ID, StageInstantiate, instErr, "Failed to instantiate agent implementation '%s'", name)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("agent implementation '%s' panicked: %v", name, r)
		}
	}()

	result, err = agent.Execute(ctx, taskConfig)
	if err != nil {
		return nil, err
	}
	return normalizeResult(result), nil
}

// resolve looks the identifier up first, then the implementation name
func (l *Loader) resolve(agentID, name string) (Factory, bool) {
	if factory, ok := l.registry.Lookup(agentID); ok {
		return factory, true
	}
	return l.registry.LookupImplementation(name)
}

// safeInstantiate converts a constructor panic into an error
func (l *Loader) safeInstantiate(factory Factory) (agent Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			agent = nil
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	return l.instantiate(factory)
}

// instantiate passes the shared credential first, falling back to New when
// the factory has no credential constructor or rejects the credential.
func (l *Loader) instantiate(factory Factory) (Agent, error) {
	if factory.WithCredential != nil {
		agent, err := factory.WithCredential(l.apiKey)
		if err == nil {
			if agent == nil {
				return nil, fmt.Errorf("factory returned no agent")
			}
			return agent, nil
		}
		if !errors.Is(err, ErrCredentialRejected) {
			return nil, err
		}
	}

	if factory.New == nil {
		return nil, ErrCredentialRejected
	}

	agent, err := factory.New()
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("factory returned no agent")
	}
	return agent, nil
}

// launch starts the artifact executable and dispenses name from it
func (l *Loader) launch(descriptor AgentDescriptor, main, name string) (*plugin.Client, *AgentRPCClient, error) {
	root, err := sandbox.NewRoot(descriptor.Path)
	if err != nil {
		return nil, nil, loadError(descriptor.ID, StageArtifact, err, "Agent artifact not found at: %s", descriptor.Path)
	}
	executable, err := root.Resolve(main)
	if err != nil {
		return nil, nil, loadError(descriptor.ID, StageArtifact, err, "Invalid plugin executable: %s", main)
	}
	if _, err := os.Stat(executable); err != nil {
		return nil, nil, loadError(descriptor.ID, StageArtifact, nil, "Plugin executable not found: %s", executable)
	}

	cmd := exec.Command(executable)
	cmd.Dir = root.Dir()

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          plugin.PluginSet{name: &AgentRPCPlugin{}},
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		StartTimeout:     l.startTimeout,
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "plugin." + descriptor.ID,
			Output: l.logger,
			Level:  hclog.Warn,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, loadError(descriptor.ID, StageResolve, err, "Failed to connect to plugin executable %s", main)
	}

	raw, err := rpcClient.Dispense(name)
	if err != nil {
		client.Kill()
		return nil, nil, loadError(descriptor.ID, StageResolve, err, "Agent implementation '%s' not found", name)
	}

	agent, ok := raw.(*AgentRPCClient)
	if !ok {
		client.Kill()
		return nil, nil, loadError(descriptor.ID, StageResolve, nil, "Unexpected plugin type for '%s'", name)
	}

	l.logger.Debug().
		Str("agent_id", descriptor.ID).
		Str("executable", executable).
		Msg("Plugin executable started")

	return client, agent, nil
}

// normalizeResult ensures the result carries a status field
func normalizeResult(result map[string]any) map[string]any {
	if _, ok := result["status"]; ok {
		return result
	}

	normalized := make(map[string]any, len(result)+1)
	for k, v := range result {
		normalized[k] = v
	}
	normalized["status"] = StatusSuccess
	return normalized
}

func errorResult(err error) map[string]any {
	return map[string]any{
		"status":  StatusError,
		"message": err.Error(),
	}
}

func newInvocationID() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("inv-%d", time.Now().UnixNano())
	}
	return id
}
