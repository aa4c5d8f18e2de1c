package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/server"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/runner"
	"github.com/hupe1980/agentloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "agentloop version "+Version+"\n", out.String())
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Subset(t, names, []string{"serve", "chat", "version"})
}

func TestServeCmd_InvalidConfig(t *testing.T) {
	t.Setenv("AGENTLOOP_MODEL_PROVIDER", "unknown")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--addr", "127.0.0.1:0"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.provider")
}

func TestChatClient_REPL(t *testing.T) {
	tools := tool.NewRegistry()
	tools.MustRegister(tool.NewFunctionTool("search", "Search the web", nil, func(context.Context, map[string]any) (any, error) {
		return "22C, sunny", nil
	}))

	m := model.NewScriptedModel(
		model.Turn{Calls: []core.ToolCallRequest{{ID: "call_1", Name: "search", Arguments: map[string]any{"query": "Paris"}}}},
		model.Turn{Text: "Sunny in Paris."},
		model.Turn{Text: "You asked about Paris."},
	)
	r := runner.New(agent.New(m, tools), nil)

	srv := httptest.NewServer(server.New(r).Handler())
	defer srv.Close()

	var out bytes.Buffer
	c := &chatClient{baseURL: srv.URL, http: http.DefaultClient, out: &out}

	err := c.repl(context.Background(), strings.NewReader("weather in Paris?\n\nwhat did I ask?\nexit\n"))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, `[tool] search {"query":"Paris"}`)
	assert.Contains(t, text, "[tool] search ok")
	assert.Contains(t, text, "Sunny in Paris.")
	assert.Contains(t, text, "You asked about Paris.")
	require.NotEmpty(t, c.threadID)

	th, err := r.Registry().Get(context.Background(), c.threadID)
	require.NoError(t, err)
	assert.Equal(t, 6, th.Conversation.Len())
}
