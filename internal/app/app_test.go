package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/agentloop/internal/config"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/runner"
	"github.com/hupe1980/agentloop/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Model.Provider = "mock"
	cfg.Credentials = config.CredentialsConfig{}
	return cfg
}

func TestNew_MockProvider(t *testing.T) {
	var logs bytes.Buffer
	a, err := New(context.Background(), testConfig(t), func(o *Options) { o.LogOutput = &logs })
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.Tools.Names())
	assert.IsType(t, &session.InMemoryStore{}, a.Store)
	assert.Contains(t, logs.String(), "app.ready")

	res, err := a.Runner.Invoke(context.Background(), runner.Request{Input: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text())
}

func TestNew_WebSearchRegisteredWithKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credentials.TavilyAPIKey = "tvly-test"

	a, err := New(context.Background(), cfg, func(o *Options) {
		o.Model = model.NewScriptedModel()
		o.LogOutput = &bytes.Buffer{}
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"search"}, a.Tools.Names())
}

func TestNew_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "threads.db")

	a, err := New(context.Background(), cfg, func(o *Options) { o.LogOutput = &bytes.Buffer{} })
	require.NoError(t, err)

	assert.IsType(t, &session.SQLiteStore{}, a.Store)
	require.NoError(t, a.Close())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Provider = "unknown"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewModel_Providers(t *testing.T) {
	cfg := testConfig(t)

	for _, provider := range []string{"openai", "anthropic", "mock"} {
		cfg.Model.Provider = provider
		cfg.Model.Name = ""
		m, err := NewModel(context.Background(), cfg)
		require.NoError(t, err, provider)
		assert.Equal(t, provider, m.Info().Provider, provider)
	}

	cfg.Model.Provider = "gemini"
	_, err := NewModel(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.LogConfig{Level: "loud", Format: "json", Backend: "slog"}, &bytes.Buffer{})
	assert.Error(t, err)
}
