package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// healthHandler reports the quest counters as JSON.
func (r *Runtime) healthHandler(w http.ResponseWriter, req *http.Request) {
	r.logger.Debug("Health check endpoint hit.", "remote_addr", req.RemoteAddr, "path", req.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(r.Stats())
}

// StartHealthcheck serves /health on Settings.HealthcheckPort until
// StopHealthcheck. A zero port disables the server. It returns the bound
// address.
func (r *Runtime) StartHealthcheck() (string, error) {
	if r.settings.HealthcheckPort <= 0 {
		r.logger.Debug("Health check server not started: disabled")
		return "", nil
	}
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	if r.httpServer != nil {
		return "", errors.New("health check server already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", r.healthHandler)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", r.settings.HealthcheckPort))
	if err != nil {
		return "", fmt.Errorf("health check listen: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	r.httpServer = srv

	go func() {
		r.logger.Info("Health check server starting", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

// StopHealthcheck shuts the health check server down gracefully.
func (r *Runtime) StopHealthcheck(ctx context.Context) error {
	r.healthMu.Lock()
	srv := r.httpServer
	r.httpServer = nil
	r.healthMu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.logger.Info("Shutting down health check server...")
	return srv.Shutdown(ctx)
}
