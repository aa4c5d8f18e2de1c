package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/server"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		url      string
		threadID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running agentloop service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := &chatClient{
				baseURL:  strings.TrimRight(url, "/"),
				threadID: threadID,
				http:     http.DefaultClient,
				out:      cmd.OutOrStdout(),
			}
			return c.repl(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8000", "service base URL")
	cmd.Flags().StringVar(&threadID, "thread", "", "continue an existing thread")

	return cmd
}

// chatClient posts user turns to /chat/stream and renders the NDJSON reply.
type chatClient struct {
	baseURL  string
	threadID string
	http     *http.Client
	out      io.Writer
}

func (c *chatClient) repl(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)

	for {
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := c.send(ctx, line); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *chatClient) send(ctx context.Context, input string) error {
	body, err := json.Marshal(map[string]string{"input": input, "thread_id": c.threadID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}

	if id := resp.Header.Get("X-Thread-ID"); id != "" {
		c.threadID = id
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		var ev server.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		c.render(ev)
	}

	return sc.Err()
}

func (c *chatClient) render(ev server.Event) {
	switch ev.Type {
	case core.EventTypeToken:
		fmt.Fprint(c.out, ev.Content)
	case core.EventTypeToolStart:
		args, _ := json.Marshal(ev.Metadata["arguments"])
		fmt.Fprintf(c.out, "\n[tool] %v %s\n", ev.Metadata["name"], args)
	case core.EventTypeToolEnd:
		status := "ok"
		if isErr, _ := ev.Metadata["is_error"].(bool); isErr {
			status = "error"
		}
		fmt.Fprintf(c.out, "[tool] %v %s\n", ev.Metadata["name"], status)
	case core.EventTypeError:
		fmt.Fprintf(c.out, "\n%s\n", ev.Content)
	case core.EventTypeMetadata:
		if ev.Metadata["status"] == core.StatusCompleted {
			fmt.Fprintln(c.out)
		}
	}
}
