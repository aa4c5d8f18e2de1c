// Package app assembles the agentloop service from a configuration: model
// provider, tools, thread store, agent engine, runner and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/internal/config"
	"github.com/hupe1980/agentloop/internal/server"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
	anthropicmodel "github.com/hupe1980/agentloop/model/anthropic"
	"github.com/hupe1980/agentloop/model/gemini"
	"github.com/hupe1980/agentloop/model/openai"
	"github.com/hupe1980/agentloop/runner"
	"github.com/hupe1980/agentloop/session"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/tool/websearch"
)

// App is a fully wired service.
type App struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *metrics.Metrics
	Tools   *tool.Registry
	Store   session.Store
	Runner  *runner.Runner
	Server  *server.Server
}

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// LogOutput receives log lines; defaults to stderr.
	LogOutput io.Writer
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	opts := Options{LogOutput: os.Stderr}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := NewLogger(cfg.Log, opts.LogOutput)
	if err != nil {
		return nil, err
	}

	m := opts.Model
	if m == nil {
		if m, err = NewModel(ctx, cfg); err != nil {
			return nil, err
		}
	}

	store, err := NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	met := metrics.New()

	tools := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Timeout = cfg.Agent.ToolTimeout
		o.Logger = logger
		o.Metrics = met
	})
	if key := cfg.Credentials.TavilyAPIKey; key != "" {
		tools.MustRegister(websearch.NewTool(websearch.NewClient(key)))
	}

	instruction := agent.NewInstructionFromText(agent.DefaultInstructions)
	if cfg.Agent.Instructions != "" {
		instruction = agent.NewInstructionFromText(cfg.Agent.Instructions)
	}

	engine := agent.New(m, tools, func(o *agent.Options) {
		o.Instruction = instruction
		o.MaxIterations = cfg.Agent.MaxIterations
		o.ModelTimeout = cfg.Agent.ModelTimeout
		o.Streaming = cfg.Agent.Streaming
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.Logger = logger
		o.Metrics = met
	})

	sessions := session.NewRegistry(store, func(o *session.RegistryOptions) {
		o.Logger = logger
		o.Metrics = met
	})

	r := runner.New(engine, sessions, func(o *runner.Options) {
		o.EventBufferSize = cfg.Stream.Buffer
		o.Logger = logger
		o.Metrics = met
	})

	srv := server.New(r, func(o *server.Options) {
		o.Addr = cfg.Server.Addr
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Info = server.Info{
			Name:        cfg.Project.Name,
			Description: cfg.Project.Description,
			Version:     cfg.Project.Version,
		}
		o.Logger = logger
		o.Metrics = met
	})

	info := m.Info()
	logger.Info("app.ready",
		"provider", info.Provider,
		"model", info.Name,
		"tools", tools.Names(),
		"store", cfg.Store.Backend,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: met,
		Tools:   tools,
		Store:   store,
		Runner:  r,
		Server:  srv,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:   level,
		Format:  cfg.Format,
		Backend: cfg.Backend,
		Output:  out,
	}), nil
}

// NewModel builds the configured model provider.
func NewModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	name := cfg.Model.Name
	key := cfg.APIKey()

	switch cfg.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = int64(cfg.Model.MaxTokens)
			o.APIKey = key
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if name != "" {
				o.Model = anthropic.Model(name)
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = int64(cfg.Model.MaxTokens)
			o.APIKey = key
		}), nil
	case "gemini":
		if key == "" {
			return nil, errors.New("gemini requires credentials.gemini_api_key")
		}
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = float32(cfg.Model.Temperature)
			o.APIKey = key
		})
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Model.Provider)
	}
}

// NewStore opens the configured thread store.
func NewStore(cfg config.StoreConfig) (session.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewInMemoryStore(), nil
	case "sqlite":
		return session.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
