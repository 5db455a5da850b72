package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-watch/internal/api/handlers"
	"github.com/isdelr/ender-watch/internal/auth"
	"github.com/isdelr/ender-watch/internal/monitoring"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/isdelr/ender-watch/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries the settings the router needs besides its services.
type RouterOptions struct {
	AllowedOrigin      string
	TokenSecret        []byte
	DefaultWindowHours int
}

// NewRouter creates and configures a new Chi router.
func NewRouter(
	opts RouterOptions,
	hub *websocket.Hub,
	capture monitoring.CaptureController,
	eventService services.EventServiceProvider,
	analysisService services.AnalysisServiceProvider,
	workspaceService services.WorkspaceServiceProvider,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	captureHandler := handlers.NewCaptureHandler(capture)
	eventHandler := handlers.NewEventHandler(eventService)
	analysisHandler := handlers.NewAnalysisHandler(analysisService, opts.DefaultWindowHours)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceService)
	wsHandler := handlers.NewWebSocketHandler(hub, analysisService, opts.DefaultWindowHours, opts.AllowedOrigin)

	r.Handle("/metrics", promhttp.Handler())

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(opts.TokenSecret))

		// WebSocket connection endpoint
		r.Get("/ws", wsHandler.Serve)

		r.Route("/capture", func(r chi.Router) {
			r.Get("/", captureHandler.Status)
			r.Post("/start", captureHandler.Start)
			r.Post("/stop", captureHandler.Stop)
		})

		r.Get("/events", eventHandler.List)
		r.Get("/analysis", analysisHandler.Run)

		r.Route("/workspace", func(r chi.Router) {
			r.Post("/files", workspaceHandler.CreateFile)
			r.Delete("/files/{name}", workspaceHandler.DeleteFile)
			r.Post("/folders", workspaceHandler.CreateFolder)
			r.Delete("/folders/{name}", workspaceHandler.DeleteFolder)
		})
	})

	return r
}
