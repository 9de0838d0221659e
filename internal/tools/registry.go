// Package tools holds the tool registry and the built-in local tools.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/lunardrift/lunardrift/internal/schema"
)

// Discoverer lazily contributes remote tools to a registry. The MCP manager
// implements it.
type Discoverer interface {
	ConnectOnce(ctx context.Context, ts schema.ToolRegistrar)
}

// Registry aggregates local tools and, lazily, tools discovered on remote
// MCP servers into one name-to-executor mapping.
type Registry struct {
	mu         sync.Mutex
	tools      map[string]schema.Tool
	discoverer Discoverer
}

// NewRegistry returns a Registry preloaded with the given local tools.
func NewRegistry(ts ...schema.Tool) *Registry {
	r := &Registry{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		r.Add(t)
	}
	return r
}

// SetDiscoverer wires the remote-tool source. Discovery runs on the first
// Declarations or Names call.
func (r *Registry) SetDiscoverer(d Discoverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoverer = d
}

// Add registers a tool. A name collision is resolved last-write-wins and
// logged as a warning, never a hard failure: later (remote) registrations
// are allowed to shadow earlier ones.
func (r *Registry) Add(t schema.Tool) schema.Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		slog.Warn("Tool name collision, later registration wins", "tool", t.Name())
	}
	r.tools[t.Name()] = t
	return t
}

// Get returns the tool with the given name, or nil if not found.
func (r *Registry) Get(name string) schema.Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tools[name]
}

// discover runs remote discovery once. Called outside the registry lock;
// the manager re-enters through Add.
func (r *Registry) discover(ctx context.Context) {
	r.mu.Lock()
	d := r.discoverer
	r.mu.Unlock()
	if d != nil {
		d.ConnectOnce(ctx, r)
	}
}

// Declarations returns all tool definitions in function-calling format,
// triggering remote discovery on first use. Output is sorted by name so
// requests are reproducible.
func (r *Registry) Declarations(ctx context.Context) []map[string]any {
	r.discover(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}

// All returns a copy of the name-to-tool mapping, triggering discovery.
func (r *Registry) All(ctx context.Context) map[string]schema.Tool {
	r.discover(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]schema.Tool, len(r.tools))
	for k, v := range r.tools {
		out[k] = v
	}
	return out
}

// Names returns the sorted tool names, triggering discovery.
func (r *Registry) Names(ctx context.Context) []string {
	all := r.All(ctx)
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
