// Package server implements the HTTP API: authentication, generation
// (including the SSE stream relay), and query history.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/cursorconnect/cursorconnect/internal/auth"
	"github.com/cursorconnect/cursorconnect/internal/config"
	"github.com/cursorconnect/cursorconnect/internal/provider"
	"github.com/cursorconnect/cursorconnect/internal/store"
)

// systemPrompt is sent with every completion request.
const systemPrompt = "You are a helpful assistant."

// Server wires the store, provider and token issuer into an HTTP handler.
// One relay session exists per streaming request; the store is the only
// state shared across requests.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	provider provider.Provider
	tokens   *auth.TokenIssuer
	log      *slog.Logger

	httpServer *http.Server

	// persistWG tracks fire-and-forget history writes so shutdown can
	// wait for them before closing the store.
	persistWG conc.WaitGroup

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Server around the given collaborators.
func New(cfg *config.Config, st *store.Store, p provider.Provider, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		provider: p,
		tokens:   auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration),
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler builds the route table with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "API is running...")
	})

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.requireAuth(s.handleMe))

	mux.Handle("POST /api/generate", s.requireAuth(s.rateLimit(s.handleGenerate)))
	mux.Handle("POST /api/generate/stream", s.requireAuth(s.rateLimit(s.handleGenerateStream)))
	mux.Handle("GET /api/generate/recent", s.requireAuth(s.handleRecent))

	mux.Handle("GET /api/history", s.requireAuth(s.handleHistoryList))
	mux.Handle("GET /api/history/{id}", s.requireAuth(s.handleHistoryGet))
	mux.Handle("DELETE /api/history/{id}", s.requireAuth(s.handleHistoryDelete))
	mux.Handle("DELETE /api/history", s.requireAuth(s.handleHistoryDeleteAll))

	return s.withLogging(s.withCORS(mux))
}

// ListenAndServe starts the HTTP listener and blocks until the server is
// shut down or fails.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Handler(),
	}
	s.log.Info("server listening",
		"port", s.cfg.Server.Port,
		"environment", s.cfg.Server.Environment,
		"provider", s.cfg.Provider.Default)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, drains in-flight requests, and
// waits for pending history writes.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.persistWG.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": s.cfg.Server.Environment,
	})
}

// limiter returns the per-user rate limiter, creating it on first use.
func (s *Server) limiter(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[userID]
	if !ok {
		rpm := s.cfg.Server.GenerateRPM
		l = rate.NewLimiter(rate.Limit(float64(rpm)/60), 5)
		s.limiters[userID] = l
	}
	return l
}

// completionRequest builds the provider request for a query.
func completionRequest(query string) provider.CompletionRequest {
	return provider.CompletionRequest{
		Prompt:      query,
		System:      systemPrompt,
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

// persistTimeout bounds the background history write that detaches from the
// request once the downstream stream has been closed.
const persistTimeout = 10 * time.Second
