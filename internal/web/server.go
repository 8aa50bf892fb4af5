package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"patterndraw/internal/capture"
	"patterndraw/internal/criteria"
	"patterndraw/internal/provider"
	"patterndraw/internal/search"
	"patterndraw/internal/workspace"
)

// SymbolLister lists the symbols a workspace can open
type SymbolLister interface {
	Load(ctx context.Context) []string
}

// Server represents the web server
type Server struct {
	manager *workspace.Manager
	symbols SymbolLister
	handler http.Handler
	srv     *http.Server
}

// NewServer creates a new web server over the workspace manager
func NewServer(m *workspace.Manager, symbols SymbolLister) *Server {
	s := &Server{manager: m, symbols: symbols}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)

	cfg := huma.DefaultConfig("patterndraw API", "1.0.0")
	api := humachi.New(router, cfg)

	// raw HTML, outside the JSON API
	router.Get("/api/v1/workspaces/{id}/chart.html", s.handleChartHTML)

	registerSymbolHandlers(api, s)
	registerWorkspaceHandlers(api, s)
	registerCaptureHandlers(api, s)
	registerSearchHandlers(api, s)
	registerRangeHandlers(api, s)

	return router
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[WEB] listening on http://localhost:%d (docs at /docs)", port)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleChartHTML(w http.ResponseWriter, r *http.Request) {
	ws, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ws.RenderChart(w); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, workspace.ErrNoSymbol) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
	}
}

// mapErr translates domain errors into HTTP problems
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var searchErr *search.SearchError
	var apiErr *search.APIError
	var provErr *provider.ProviderError
	switch {
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, search.ErrNoSearch), errors.Is(err, provider.ErrNoData):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, workspace.ErrInvalidSymbol),
		errors.Is(err, criteria.ErrInsufficientPoints),
		errors.Is(err, criteria.ErrZeroPrice),
		errors.Is(err, capture.ErrInvalidPrice):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, capture.ErrInactive), errors.Is(err, workspace.ErrNoSymbol), errors.Is(err, workspace.ErrStaleLoad):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	case errors.As(err, &searchErr), errors.As(err, &apiErr), errors.As(err, &provErr), errors.Is(err, search.ErrTokenExpired):
		return huma.Error502BadGateway(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
