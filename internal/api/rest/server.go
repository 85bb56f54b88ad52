package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewRouter builds the API routes around handler
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", handler.GetStatus).Methods("GET", "OPTIONS")
	api.HandleFunc("/players/resolve", handler.ResolvePlayer).Methods("GET", "OPTIONS")
	api.HandleFunc("/availability", handler.GetAvailability).Methods("GET", "OPTIONS")
	api.HandleFunc("/patches/recent", handler.GetRecentPatches).Methods("GET", "OPTIONS")
	api.HandleFunc("/patches/summary", handler.GetPatchSummary).Methods("GET", "OPTIONS")

	return router
}

// NewServer creates a new REST API server
func NewServer(port string, handler *Handler) *Server {
	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: NewRouter(handler),
		},
	}
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
