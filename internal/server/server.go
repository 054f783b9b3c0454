package server

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/api"
	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
	"github.com/IlyassOtmani/car-price-ml/internal/presets"
)

//go:embed static/*
var staticFS embed.FS

// Deps are the components the server routes requests to
type Deps struct {
	Predictor api.Predictor
	Form      *form.Form
	Presets   *presets.Store
	History   api.History
	Info      pipeline.Info
}

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	deps       Deps
	httpServer *http.Server
	router     *mux.Router
}

// New creates a new Server with all routes registered
func New(cfg config.Config, deps Deps) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	s.router.Use(requestIDMiddleware, accessLogMiddleware)

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.deps.Predictor, s.deps.Form, s.deps.Presets, s.deps.History, s.deps.Info, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Prediction page
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/predict", s.handlePredictForm).Methods("POST")

	// Static assets (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	s.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	return nil
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Msgf("Server listening on http://%s", s.cfg.Addr())
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
