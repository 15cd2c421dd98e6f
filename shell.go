package mcshell

import (
	"context"
	"fmt"
)

// ToolDetailsRequest names one tool on one server for get_tool_details.
type ToolDetailsRequest struct {
	Server string `json:"server"`
	Tool   string `json:"tool"`
}

// Facade is the engine's public operations surface, the only entry
// point callers outside this package should use. Both the stdio and
// HTTP transports are thin adapters over the same four methods.
type Facade interface {
	// ExecutePipeline validates and runs p, returning a populated
	// PipelineResult even on failure.
	ExecutePipeline(ctx context.Context, p Pipeline) PipelineResult

	// ListAllTools enumerates every tool on every reachable server.
	ListAllTools(ctx context.Context) (map[string][]ToolDescriptor, error)

	// GetToolDetails resolves one tool's schema and description.
	GetToolDetails(ctx context.Context, req ToolDetailsRequest) (ToolDescriptor, error)

	// ListAvailableShellCommands returns the frozen local allow-list.
	ListAvailableShellCommands(ctx context.Context) ([]string, error)
}

// Shell is the concrete Facade implementation, wiring together the
// allow-list, subprocess runner, tool-server session pool, and
// pipeline orchestrator. It is the moral equivalent of the SDK's
// Client: one long-lived value constructed once per process and
// reused across every request it serves.
type Shell struct {
	allow        Allowlist
	limits       EngineLimits
	log          Logger
	runner       *SubprocessRunner
	pool         *SessionPool
	orchestrator *Orchestrator
	registry     RegistryClient
}

// Option configures a Shell at construction time. The functional
// options pattern mirrors how the rest of this dependency's ecosystem
// configures long-lived clients: zero-value-safe defaults overridden
// selectively, rather than a sprawling constructor argument list.
type Option func(*shellConfig)

type shellConfig struct {
	limits   EngineLimits
	log      Logger
	registry RegistryClient
	metrics  *Metrics
}

// WithLimits overrides the resource bounds applied to every pipeline
// invocation. Defaults to DefaultLimits().
func WithLimits(limits EngineLimits) Option {
	return func(c *shellConfig) { c.limits = limits }
}

// WithLogger sets the structured logger used for engine-level events
// (session open/close, command termination). Defaults to a no-op
// logger.
func WithLogger(log Logger) Option {
	return func(c *shellConfig) { c.log = log }
}

// WithRegistry sets the client used to resolve remote tool servers.
// Defaults to an empty StaticRegistryClient: no servers are listed and
// every lookup fails with ErrNotFound. NewShell does not read
// MCSHELL_RUNTIME_ADDR itself; cmd/mcshelld does.
func WithRegistry(registry RegistryClient) Option {
	return func(c *shellConfig) { c.registry = registry }
}

// WithMetrics attaches Prometheus collectors to every pipeline
// invocation the Shell runs. The caller is responsible for
// registering m's collectors with a prometheus.Registerer.
func WithMetrics(m *Metrics) Option {
	return func(c *shellConfig) { c.metrics = m }
}

// NewShell constructs a Shell ready to serve requests. It never blocks
// on network I/O: tool-server sessions are opened lazily on first use.
func NewShell(opts ...Option) *Shell {
	cfg := shellConfig{
		limits: DefaultLimits(),
		log:    NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = NewStaticRegistryClient(nil)
	}

	allow := NewAllowlist()
	runner := NewSubprocessRunner(allow, cfg.limits, cfg.log)
	pool := NewSessionPool(cfg.registry, cfg.limits, cfg.log)
	orchestrator := NewOrchestrator(pool, runner, allow, cfg.limits, cfg.log)
	orchestrator.SetMetrics(cfg.metrics)

	return &Shell{
		allow:        allow,
		limits:       cfg.limits,
		log:          cfg.log,
		runner:       runner,
		pool:         pool,
		orchestrator: orchestrator,
		registry:     cfg.registry,
	}
}

// ExecutePipeline implements Facade.
func (s *Shell) ExecutePipeline(ctx context.Context, p Pipeline) PipelineResult {
	return s.orchestrator.ExecutePipeline(ctx, p)
}

// ListAllTools implements Facade.
func (s *Shell) ListAllTools(ctx context.Context) (map[string][]ToolDescriptor, error) {
	return s.pool.ListTools(ctx)
}

// GetToolDetails implements Facade.
func (s *Shell) GetToolDetails(ctx context.Context, req ToolDetailsRequest) (ToolDescriptor, error) {
	if req.Server == "" || req.Tool == "" {
		return ToolDescriptor{}, fmt.Errorf("get_tool_details: server and tool are required")
	}
	return s.pool.Describe(ctx, req.Server, req.Tool)
}

// ListAvailableShellCommands implements Facade.
func (s *Shell) ListAvailableShellCommands(ctx context.Context) ([]string, error) {
	return s.allow.List(), nil
}

// Close releases every open tool-server session. Call once during
// process shutdown.
func (s *Shell) Close() error {
	return s.pool.Close()
}
