// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package convertapi is the HTTP surface of the conversion service:
// format conversion with streaming responses, previews, and health.
package convertapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/cardinalhq/tableconv/config"
	"github.com/cardinalhq/tableconv/internal/scratch"
	"github.com/cardinalhq/tableconv/internal/sourceresolver"
)

// Service wires the conversion pipeline behind the HTTP mux.
type Service struct {
	cfg      *config.Config
	scratch  *scratch.Manager
	resolver *sourceresolver.Resolver
}

// NewService creates the service over a loaded config and scratch manager.
func NewService(cfg *config.Config, mgr *scratch.Manager) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		scratch: mgr,
		resolver: &sourceresolver.Resolver{
			Scratch:      mgr,
			MaxItemBytes: cfg.Limits.MaxItemBytes,
			Timeout:      cfg.Fetch.Timeout,
			MaxRedirects: cfg.Fetch.MaxRedirects,
		},
	}, nil
}

// Handler returns the routed HTTP handler with CORS applied.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /health", s.healthCheck)
	mux.HandleFunc("POST /v1/convert/{pair}", s.handleConvert)
	mux.HandleFunc("POST /v1/preview", s.handlePreview)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// Run starts the HTTP server and blocks until ctx is done or the server
// fails, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down conversion API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (s *Service) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
