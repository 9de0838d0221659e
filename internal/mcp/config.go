package mcp

import (
	"strings"

	cfg "github.com/lunardrift/lunardrift/internal/config"
)

// ServerConfig holds the connection parameters for a single MCP server.
type ServerConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
	Auth    cfg.MCPAuthConfig
}

// toServerConfig converts a config-layer MCPServerConfig to the internal ServerConfig.
func toServerConfig(c cfg.MCPServerConfig) ServerConfig {
	return ServerConfig{
		Command: c.Command,
		Args:    c.Args,
		Env:     c.Env,
		URL:     c.URL,
		Headers: c.Headers,
		Auth:    c.Auth,
	}
}

// authBaseURL derives the OAuth base URL for a server.
// HTTP servers use the scheme://host of their endpoint. Stdio proxies are
// started with an upstream URL in their args; a trailing /sse segment is the
// proxy endpoint, not the auth base, so it is stripped.
func authBaseURL(c ServerConfig) string {
	if c.URL != "" {
		if i := strings.Index(c.URL, "://"); i >= 0 {
			rest := c.URL[i+3:]
			if j := strings.IndexByte(rest, '/'); j >= 0 {
				return c.URL[:i+3+j]
			}
		}
		return c.URL
	}
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			return strings.TrimSuffix(strings.TrimRight(arg, "/"), "/sse")
		}
	}
	return ""
}
