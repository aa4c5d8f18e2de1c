// Package config loads the agentloop process configuration from defaults, an
// optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete process configuration.
type Config struct {
	Server      ServerConfig      `json:"server" mapstructure:"server"`
	Project     ProjectConfig     `json:"project" mapstructure:"project"`
	Model       ModelConfig       `json:"model" mapstructure:"model"`
	Credentials CredentialsConfig `json:"credentials" mapstructure:"credentials"`
	Agent       AgentConfig       `json:"agent" mapstructure:"agent"`
	Stream      StreamConfig      `json:"stream" mapstructure:"stream"`
	Store       StoreConfig       `json:"store" mapstructure:"store"`
	Log         LogConfig         `json:"log" mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ProjectConfig is reported by the info endpoint.
type ProjectConfig struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	Version     string `json:"version" mapstructure:"version"`
}

// ModelConfig selects the model provider.
type ModelConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic, gemini, mock
	Name        string  `json:"name" mapstructure:"name"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// CredentialsConfig holds provider API keys.
type CredentialsConfig struct {
	OpenAIAPIKey    string `json:"-" mapstructure:"openai_api_key"`
	AnthropicAPIKey string `json:"-" mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `json:"-" mapstructure:"gemini_api_key"`
	TavilyAPIKey    string `json:"-" mapstructure:"tavily_api_key"`
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	Instructions     string        `json:"instructions" mapstructure:"instructions"`
	MaxIterations    int           `json:"max_iterations" mapstructure:"max_iterations"`
	ModelTimeout     time.Duration `json:"model_timeout" mapstructure:"model_timeout"`
	ToolTimeout      time.Duration `json:"tool_timeout" mapstructure:"tool_timeout"`
	MaxParallelTools int           `json:"max_parallel_tools" mapstructure:"max_parallel_tools"`
	Streaming        bool          `json:"streaming" mapstructure:"streaming"`
}

// StreamConfig tunes event delivery.
type StreamConfig struct {
	Buffer int `json:"buffer" mapstructure:"buffer"`
}

// StoreConfig selects the thread store.
type StoreConfig struct {
	Backend    string `json:"backend" mapstructure:"backend"` // memory, sqlite
	SQLitePath string `json:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	Format  string `json:"format" mapstructure:"format"`   // json, text
	Backend string `json:"backend" mapstructure:"backend"` // slog, zerolog
}

// Validate checks enumerations and numeric bounds.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}

	switch c.Model.Provider {
	case "openai", "anthropic", "gemini", "mock":
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature must be within [0, 2], got %v", c.Model.Temperature))
	}

	if c.Agent.MaxIterations < 0 {
		errs = append(errs, errors.New("agent.max_iterations must not be negative"))
	}
	if c.Agent.ModelTimeout < 0 || c.Agent.ToolTimeout < 0 {
		errs = append(errs, errors.New("agent timeouts must not be negative"))
	}
	if c.Agent.MaxParallelTools < 1 {
		errs = append(errs, errors.New("agent.max_parallel_tools must be at least 1"))
	}
	if c.Stream.Buffer < 0 {
		errs = append(errs, errors.New("stream.buffer must not be negative"))
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not supported", c.Store.Backend))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}

	switch c.Log.Backend {
	case "slog", "zerolog":
	default:
		errs = append(errs, fmt.Errorf("log.backend %q is not supported", c.Log.Backend))
	}

	return errors.Join(errs...)
}

// APIKey returns the credential for the configured model provider.
func (c *Config) APIKey() string {
	switch c.Model.Provider {
	case "openai":
		return c.Credentials.OpenAIAPIKey
	case "anthropic":
		return c.Credentials.AnthropicAPIKey
	case "gemini":
		return c.Credentials.GeminiAPIKey
	default:
		return ""
	}
}
