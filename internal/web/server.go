package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombor/doc-capture/internal/capture"
	"github.com/zombor/doc-capture/internal/extraction"
)

// DefaultHistoryLimit is how many outcomes /api/history returns by default
const DefaultHistoryLimit = 20

// Controller is the part of the capture controller the UI drives
type Controller interface {
	SelectFile(doc extraction.Document)
	Submit() bool
	Snapshot() capture.State
}

// HistoryLister lists completed submission outcomes, newest first
type HistoryLister interface {
	List(limit int) ([]*capture.Outcome, error)
}

// Server renders the capture UI and its JSON API
type Server struct {
	controller   Controller
	history      HistoryLister
	historyLimit int
	mux          *http.ServeMux
	handler      http.Handler
	page         *template.Template
	httpServer   *http.Server
}

// NewServer creates a new Server with default mux. history may be nil.
func NewServer(controller Controller, history HistoryLister) *Server {
	return NewServerWithMux(controller, history, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(controller Controller, history HistoryLister, mux *http.ServeMux) *Server {
	s := &Server{
		controller:   controller,
		history:      history,
		historyLimit: DefaultHistoryLimit,
		mux:          mux,
		page:         pageTemplate,
	}
	s.registerRoutes()
	s.handler = requestID(accessLog(s.mux))
	return s
}

// SetHistoryLimit changes the default number of outcomes listed
func (s *Server) SetHistoryLimit(limit int) {
	if limit > 0 {
		s.historyLimit = limit
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /select", s.handleSelect)
	s.mux.HandleFunc("POST /submit", s.handleSubmit)

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.handleIndex)
	s.mux.HandleFunc("GET /", s.handleIndex)
}

// Start serves HTTP on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	slog.Info("Starting server", "address", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
