package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AGENTLOOP_SERVER_ADDR.
const EnvPrefix = "AGENTLOOP"

// unprefixed maps config keys to the plain environment variables the service
// also honours.
var unprefixed = map[string]string{
	"credentials.openai_api_key":    "OPENAI_API_KEY",
	"credentials.anthropic_api_key": "ANTHROPIC_API_KEY",
	"credentials.gemini_api_key":    "GEMINI_API_KEY",
	"credentials.tavily_api_key":    "TAVILY_API_KEY",
	"project.name":                  "PROJECT_NAME",
	"project.description":           "DESCRIPTION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("project.name", "agentloop")
	v.SetDefault("project.description", "Conversational agent loop with tool calling and streaming")
	v.SetDefault("project.version", "0.1.0")

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "gpt-4o")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.max_tokens", 4096)

	v.SetDefault("credentials.openai_api_key", "")
	v.SetDefault("credentials.anthropic_api_key", "")
	v.SetDefault("credentials.gemini_api_key", "")
	v.SetDefault("credentials.tavily_api_key", "")

	v.SetDefault("agent.instructions", "You are a helpful assistant. Please respond to the user's request only based on the given context.")
	v.SetDefault("agent.max_iterations", 25)
	v.SetDefault("agent.model_timeout", "60s")
	v.SetDefault("agent.tool_timeout", "15s")
	v.SetDefault("agent.max_parallel_tools", 1)
	v.SetDefault("agent.streaming", true)

	v.SetDefault("stream.buffer", 16)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.sqlite_path", "agentloop.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.backend", "slog")
}

// Loader handles configuration loading.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a new config loader. An empty path skips the config file.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	setDefaults(v)
	return &Loader{configPath: configPath, v: v}
}

// Viper exposes the underlying viper instance, e.g. to bind CLI flags.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load resolves defaults, the config file (when present) and environment
// overrides, then validates the result.
func (l *Loader) Load() (*Config, error) {
	v := l.v

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err == nil {
			v.SetConfigFile(l.configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range unprefixed {
		if err := v.BindEnv(key, strings.ToUpper(EnvPrefix+"_"+strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Load is a convenience function that creates a loader and loads the config.
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
