package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string, got *searchRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Search(t *testing.T) {
	var got searchRequest
	srv := newTestServer(t, http.StatusOK, `{"results":[{"url":"https://a","content":"sunny"},{"url":"https://b","content":"rain"}]}`, &got)

	c := NewClient("tvly-key", func(o *Options) { o.Endpoint = srv.URL })
	res, err := c.Search(context.Background(), "weather berlin")
	require.NoError(t, err)

	assert.Equal(t, searchRequest{APIKey: "tvly-key", Query: "weather berlin", MaxResults: 1}, got)
	assert.Equal(t, []Result{{URL: "https://a", Content: "sunny"}}, res)
}

func TestClient_SearchErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewClient("").Search(context.Background(), "q")
		assert.ErrorContains(t, err, "api key")
	})

	t.Run("http status", func(t *testing.T) {
		srv := newTestServer(t, http.StatusUnauthorized, `{"detail":"bad key"}`, nil)
		c := NewClient("k", func(o *Options) { o.Endpoint = srv.URL })
		_, err := c.Search(context.Background(), "q")
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, `not json`, nil)
		c := NewClient("k", func(o *Options) { o.Endpoint = srv.URL })
		_, err := c.Search(context.Background(), "q")
		assert.ErrorContains(t, err, "decode")
	})
}

func TestNewTool(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"results":[{"url":"https://go.dev","content":"Go"}]}`, nil)
	search := NewTool(NewClient("k", func(o *Options) { o.Endpoint = srv.URL }))

	assert.Equal(t, "search", search.Name())
	assert.Equal(t, []string{"query"}, search.Parameters()["required"])

	out, err := search.Call(context.Background(), map[string]any{"query": "golang"})
	require.NoError(t, err)
	assert.Equal(t, []Result{{URL: "https://go.dev", Content: "Go"}}, out)

	_, err = search.Call(context.Background(), map[string]any{"query": ""})
	assert.Error(t, err)
}
