package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mvalenta/meetly-be/internal/api"
	"github.com/mvalenta/meetly-be/internal/auth"
	"github.com/mvalenta/meetly-be/internal/config"
	"github.com/mvalenta/meetly-be/internal/database"
	"github.com/mvalenta/meetly-be/internal/logger"
	"github.com/mvalenta/meetly-be/internal/monitoring"
	"github.com/mvalenta/meetly-be/internal/services"
	"github.com/mvalenta/meetly-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}
	auth.Init(cfg.JWTSecret, cfg.TokenTTL)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	validate := validator.New()
	eventService := services.NewEventService(db)
	userService := services.NewUserService(db, validate)
	meetingService := services.NewMeetingService(db, eventService, hub, validate)

	// Set up and run the maintenance janitor
	janitor, err := monitoring.NewJanitor(db, eventService, cfg.CleanupSchedule, cfg.EventRetentionDays)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid cleanup schedule")
	}
	go janitor.Run()

	// Set up router
	router := api.NewRouter(hub, meetingService, userService, eventService, cfg.CORSOrigin)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	janitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
