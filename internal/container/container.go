// Package container wires core lunardrift services using go.uber.org/dig.
package container

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/lunardrift/lunardrift/internal/agent"
	"github.com/lunardrift/lunardrift/internal/config"
	"github.com/lunardrift/lunardrift/internal/mcp"
	"github.com/lunardrift/lunardrift/internal/providers"
	"github.com/lunardrift/lunardrift/internal/schema"
	"github.com/lunardrift/lunardrift/internal/session"
	"github.com/lunardrift/lunardrift/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider   schema.LLMProvider
	registry   *tools.Registry
	mcpManager *mcp.Manager
	jobs       *tools.JobManager
	loop       *agent.Loop
}

func (c *Container) Provider() schema.LLMProvider { return c.provider }
func (c *Container) Registry() *tools.Registry    { return c.registry }
func (c *Container) MCPManager() *mcp.Manager     { return c.mcpManager }
func (c *Container) Jobs() *tools.JobManager      { return c.jobs }
func (c *Container) Loop() *agent.Loop            { return c.loop }

// Shutdown tears down everything the container owns: MCP subprocesses and
// background shell jobs. Safe to call more than once.
func (c *Container) Shutdown() {
	if c.mcpManager != nil {
		c.mcpManager.Close()
	}
	if c.jobs != nil {
		c.jobs.KillAll()
	}
}

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newCredentialStore,
		newProvider,
		newJobManager,
		newMCPManager,
		newRegistry,
		newSessionManager,
		newLoop,
	}
	for _, ctor := range constructors {
		if err := d.Provide(ctor); err != nil {
			return nil, fmt.Errorf("wire container: %w", err)
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		registry *tools.Registry,
		manager *mcp.Manager,
		jobs *tools.JobManager,
		loop *agent.Loop,
	) {
		result = &Container{
			provider:   provider,
			registry:   registry,
			mcpManager: manager,
			jobs:       jobs,
			loop:       loop,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("resolve container: %w", err)
	}
	return result, nil
}

func newCredentialStore() (*config.CredentialStore, error) {
	return config.OpenCredentialStore(config.CredentialsPath())
}

func newProvider(cfg *config.Config) schema.LLMProvider {
	return providers.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
}

func newJobManager(cfg *config.Config) *tools.JobManager {
	return tools.NewJobManager(cfg.Tools.Workspace, cfg.Tools.ExecTimeoutSeconds)
}

func newMCPManager(cfg *config.Config, store *config.CredentialStore) *mcp.Manager {
	return mcp.NewManager(cfg.MCPServers, store)
}

func newSessionManager() *session.Manager {
	return session.NewManager()
}

// newRegistry assembles the built-in tool set. Filesystem and shell tools
// require a configured workspace; web search requires a Brave API key.
// Remote tools arrive lazily through the MCP manager.
func newRegistry(cfg *config.Config, jobs *tools.JobManager, manager *mcp.Manager) *tools.Registry {
	r := tools.NewRegistry(tools.NewWeatherTool(), tools.NewWebFetchTool())

	if cfg.Tools.BraveAPIKey != "" {
		r.Add(tools.NewWebSearchTool(cfg.Tools.BraveAPIKey))
	}
	if ws := cfg.Tools.Workspace; ws != "" {
		r.Add(tools.NewReadFileTool(ws))
		r.Add(tools.NewWriteFileTool(ws))
		r.Add(tools.NewApplyPatchTool(ws))
		r.Add(tools.NewListDirTool(ws))
		r.Add(tools.NewStartCommandTool(jobs))
		r.Add(tools.NewCheckCommandTool(jobs))
		r.Add(tools.NewKillCommandTool(jobs))
	}

	r.SetDiscoverer(manager)
	return r
}

func newLoop(cfg *config.Config, provider schema.LLMProvider, registry *tools.Registry, sessions *session.Manager) *agent.Loop {
	return agent.New(provider, registry, sessions, agent.Settings{
		Model:        cfg.Provider.Model,
		MaxToolCalls: cfg.Agent.MaxToolCalls,
		MaxTokens:    cfg.Agent.MaxTokens,
		Temperature:  cfg.Agent.Temperature,
	})
}
