package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/slowdown/internal/throttle"
)

// NewRouter exposes the metrics registry, a liveness probe and the recent
// failure samples.
func NewRouter(m *Metrics) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/failures", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Failures().Recent(0))
	}).Methods(http.MethodGet)

	return r
}

// Server serves the metrics router in the background.
type Server struct {
	srv  *http.Server
	addr net.Addr
}

// Serve binds addr before returning so a bad address is reported as a
// setup failure, then serves on its own goroutine.
func Serve(addr string, m *Metrics, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, throttle.NewError(throttle.SetupFailure, "listen", 0,
			"failed to start metrics listener on "+addr, err)
	}

	srv := &http.Server{
		Handler:      NewRouter(m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()

	logger.Info("Metrics listening", "addr", ln.Addr().String())
	return &Server{srv: srv, addr: ln.Addr()}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
