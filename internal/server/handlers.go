package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/runner"
	"github.com/hupe1980/agentloop/stream"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Info)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type threadResponse struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Busy      bool           `json:"busy"`
	Messages  []core.Message `json:"messages"`
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	registry := s.runner.Registry()

	th, err := registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, threadResponse{
		ID:        th.ID,
		CreatedAt: th.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: th.UpdatedAt.Format(time.RFC3339Nano),
		Busy:      registry.Busy(th.ID),
		Messages:  th.Conversation.Messages(),
	})
}

// handleStream runs one loop execution and writes its events as NDJSON,
// flushing after every line.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, errors.New("input is required"))
		return
	}

	run, err := s.runner.Stream(r.Context(), runner.Request{Input: req.Input, ThreadID: req.threadID()})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer run.Stream.Close()

	h := w.Header()
	h.Set("Content-Type", "application/x-ndjson")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Thread-ID", run.ThreadID)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	logger := logging.FromContextOr(r.Context(), s.logger)

	for {
		ev, ok := run.Stream.Next(r.Context())
		if !ok {
			return
		}

		if err := enc.Encode(NewEvent(ev, run.ThreadID, req.UserID)); err != nil {
			logger.Warn("server.stream.write_failed", "request_id", run.RequestID, "error", err)
			return
		}

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logger.Warn("server.stream.flush_failed", "request_id", run.RequestID, "error", err)
			return
		}
	}
}

// handleWebSocket serves one loop execution per client text frame. The thread
// id is remembered per connection so that follow-up frames continue the
// same conversation.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("server.ws.upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	connID, _ := gonanoid.New()
	logger := logging.With(s.logger, "conn_id", connID)
	logger.Info("server.ws.connected", "remote", r.RemoteAddr)

	ctx := r.Context()
	threadID := ""

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("server.ws.read_failed", "error", err)
			}
			break
		}

		if id := req.threadID(); id != "" {
			threadID = id
		}

		if strings.TrimSpace(req.Input) == "" {
			if err := conn.WriteJSON(Event{Type: core.EventTypeError, Content: "input is required", ThreadID: threadID}); err != nil {
				break
			}
			continue
		}

		run, err := s.runner.Stream(ctx, runner.Request{Input: req.Input, ThreadID: threadID})
		if err != nil {
			logger.Warn("server.ws.run_rejected", "thread_id", threadID, "error", err)
			if err := conn.WriteJSON(Event{Type: core.EventTypeError, Content: stream.ErrorPrefix + err.Error(), ThreadID: threadID}); err != nil {
				break
			}
			continue
		}

		threadID = run.ThreadID

		if !s.pump(run, conn, req.UserID) {
			break
		}
	}

	logger.Info("server.ws.disconnected")
}

// pump writes the events of run to conn. It reports false when the
// connection is no longer writable.
func (s *Server) pump(run *runner.Run, conn *websocket.Conn, userID string) bool {
	defer run.Stream.Close()

	for ev := range run.Stream.Events() {
		if err := conn.WriteJSON(NewEvent(ev, run.ThreadID, userID)); err != nil {
			return false
		}
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrThreadBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidConversation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
