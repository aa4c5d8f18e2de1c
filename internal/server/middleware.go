package server

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/hupe1980/agentloop/logging"
)

// statusRecorder captures the response status. It forwards Flush and Hijack
// so streaming and websocket upgrades work through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// requestLogger logs method, path, protocol, status and duration of every
// request, and makes the logger available to handlers via the context.
func requestLogger(logger logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r.WithContext(logging.NewContext(r.Context(), logger)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"proto", r.Proto,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
