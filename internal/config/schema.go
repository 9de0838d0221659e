package config

// Config is the root configuration object persisted at ConfigPath().
type Config struct {
	Agent      AgentConfig                `json:"agent" yaml:"agent"`
	Provider   ProviderConfig             `json:"provider" yaml:"provider"`
	Tools      ToolsConfig                `json:"tools" yaml:"tools"`
	MCPServers map[string]MCPServerConfig `json:"mcpServers" yaml:"mcpServers"`
}

// AgentConfig holds the conversation-loop settings.
type AgentConfig struct {
	MaxToolCalls int     `json:"maxToolCalls" yaml:"maxToolCalls"`
	MaxTokens    int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
}

// ProviderConfig configures the LLM backend.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" yaml:"apiKey"`
	APIBase string `json:"apiBase" yaml:"apiBase"`
	Model   string `json:"model" yaml:"model"`
}

// ToolsConfig groups built-in tool settings.
type ToolsConfig struct {
	// Workspace confines filesystem and shell tools. Empty disables them.
	Workspace          string `json:"workspace" yaml:"workspace"`
	BraveAPIKey        string `json:"braveApiKey" yaml:"braveApiKey"`
	ExecTimeoutSeconds int    `json:"execTimeoutSeconds" yaml:"execTimeoutSeconds"`
}

// MCPAuthConfig holds the OAuth client settings for one MCP server.
type MCPAuthConfig struct {
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
	RedirectPort int      `json:"redirectPort" yaml:"redirectPort"`
}

// MCPServerConfig describes one MCP server connection (stdio or HTTP).
type MCPServerConfig struct {
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args" yaml:"args"`
	Env     map[string]string `json:"env" yaml:"env"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers" yaml:"headers"`
	Enabled *bool             `json:"enabled" yaml:"enabled"`
	Auth    MCPAuthConfig     `json:"auth" yaml:"auth"`
}

// IsEnabled reports whether the server should be connected.
// Servers are enabled unless explicitly disabled.
func (c MCPServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DefaultConfig returns the built-in defaults applied before the config
// file is merged on top.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			MaxToolCalls: 10,
			MaxTokens:    4096,
			Temperature:  0.2,
		},
		Provider: ProviderConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Tools: ToolsConfig{
			ExecTimeoutSeconds: 60,
		},
		MCPServers: map[string]MCPServerConfig{},
	}
}
