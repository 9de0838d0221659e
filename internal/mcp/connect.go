package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	cfg "github.com/lunardrift/lunardrift/internal/config"
	"github.com/lunardrift/lunardrift/internal/schema"
)

// Manager owns the lifecycle of all MCP server connections.
// Connection and discovery happen at most once, on first demand; failed
// servers are logged and skipped rather than failing the whole registry.
type Manager struct {
	servers map[string]cfg.MCPServerConfig
	store   *cfg.CredentialStore

	once    sync.Once
	mu      sync.Mutex
	clients []*Client
}

// NewManager returns a Manager for the configured servers.
func NewManager(servers map[string]cfg.MCPServerConfig, store *cfg.CredentialStore) *Manager {
	return &Manager{servers: servers, store: store}
}

// ConnectOnce connects to every enabled server concurrently and registers
// the discovered tools into ts. Safe to call repeatedly and from multiple
// goroutines; work happens at most once.
func (m *Manager) ConnectOnce(ctx context.Context, ts schema.ToolRegistrar) {
	m.once.Do(func() {
		type discovery struct {
			client *Client
			tools  []ToolInfo
		}
		found := map[string]discovery{}
		var foundMu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		for name, sc := range m.servers {
			if !sc.IsEnabled() {
				slog.Debug("MCP server disabled, skipping", "server", name)
				continue
			}
			g.Go(func() error {
				conf := toServerConfig(sc)
				c := NewClient(name, conf, NewAuthenticator(name, conf, m.store))
				if err := c.Connect(gctx); err != nil {
					slog.Error("MCP server connect failed", "server", name, "err", err)
					return nil
				}
				tools, err := c.ListTools(gctx)
				if err != nil {
					slog.Error("MCP server list_tools failed", "server", name, "err", err)
					c.Close()
					return nil
				}
				foundMu.Lock()
				found[name] = discovery{client: c, tools: tools}
				foundMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		// Register in stable server order so collisions resolve the same
		// way on every run.
		names := make([]string, 0, len(found))
		for name := range found {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			d := found[name]
			for _, info := range d.tools {
				if info.Name == "" {
					slog.Warn("Remote tool is missing a name, skipping", "server", name)
					continue
				}
				params, _ := json.Marshal(SanitizeSchema(info.InputSchema))
				ts.Add(&remoteTool{
					client:      d.client,
					name:        info.Name,
					description: ScrubDescription(info.Description),
					parameters:  params,
					streaming:   info.SupportsStreaming,
				})
				slog.Debug("Remote tool registered", "server", name, "tool", info.Name, "streaming", info.SupportsStreaming)
			}
			slog.Info("MCP server connected", "server", name, "tools", len(d.tools))

			m.mu.Lock()
			m.clients = append(m.clients, d.client)
			m.mu.Unlock()
		}
	})
}

// Close tears down all connected servers. Each client's subprocess group is
// signalled exactly once.
func (m *Manager) Close() {
	m.mu.Lock()
	clients := m.clients
	m.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
