package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// Server exposes /metrics, /healthz and /status.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the HTTP server for addr.
func NewServer(addr string, reg *prom.Registry, runner *Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newMux(reg, runner),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func newMux(reg *prom.Registry, runner *Runner) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.HTTPHandler(reg))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "version": version.Resolved()})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, runner.Status())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Start listens in the background. Listen errors are returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Metrics server listening", logfields.URL("http://"+ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server stopped", logfields.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
