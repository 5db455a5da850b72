package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/ender-watch/internal/api"
	"github.com/isdelr/ender-watch/internal/auth"
	"github.com/isdelr/ender-watch/internal/config"
	"github.com/isdelr/ender-watch/internal/database"
	"github.com/isdelr/ender-watch/internal/detect"
	"github.com/isdelr/ender-watch/internal/logger"
	"github.com/isdelr/ender-watch/internal/monitoring"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/isdelr/ender-watch/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ruleConfig, err := detect.LoadConfig(cfg.DetectionConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load detection config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up services
	eventService := services.NewEventService(cfg.DatabasePath)
	analysisService := services.NewAnalysisService(eventService, detect.DefaultRegistry(ruleConfig), cfg.SortAlerts)
	workspaceService := services.NewWorkspaceService(cfg.WatchDir, cfg.DatabasePath)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Start capturing before anything reads the store
	capture := monitoring.NewCapture(ctx, monitoring.CaptureOptions{
		WatchDir:     cfg.WatchDir,
		PollInterval: cfg.ProcessPollInterval,
		Excluded:     database.CompanionFiles(cfg.DatabasePath),
	}, eventService, monitoring.SystemProcesses{})
	if err := capture.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start capture")
	}

	// Set up and run the background analysis scheduler
	scheduler, err := monitoring.NewScheduler(cfg.AnalysisSchedule, cfg.AnalysisWindowHours, analysisService, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure analysis scheduler")
	}
	go scheduler.Run()

	secret := []byte(cfg.ControlTokenSecret)
	if len(secret) > 0 {
		token, err := auth.GenerateToken(secret, "operator", 24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue control token")
		}
		log.Info().Str("token", token).Msg("Control API requires a bearer token")
	}

	// Set up router
	router := api.NewRouter(api.RouterOptions{
		AllowedOrigin:      cfg.AllowedOrigin,
		TokenSecret:        secret,
		DefaultWindowHours: cfg.AnalysisWindowHours,
	}, hub, capture, eventService, analysisService, workspaceService)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.ServerPort),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Control API starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	scheduler.Stop()
	if err := capture.Stop(); err != nil && err != monitoring.ErrCaptureStopped {
		log.Error().Err(err).Msg("Capture did not stop cleanly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Close()

	log.Info().Msg("Exiting")
}
