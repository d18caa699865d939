/*
main.go - Application entry point

PURPOSE:
  Starts the booking HTTP server. Handles configuration, dependency
  wiring, the reminder scheduler and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (.env file, then BOOKING_* environment)
  3. Build the logger
  4. Wire stores, notifiers and the service (app.Build)
  5. Start the reminder scheduler if enabled
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -env     Optional .env file (default: .env, ignored when absent)
  -port    Overrides BOOKING_PORT

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the outbox and broker connections

EXAMPLES:
  # Defaults: ./data, Asia/Tokyo, log notifier
  ./server

  # Outbox and broker notifications
  BOOKING_NOTIFIERS=log,outbox,amqp ./server -port=3000

SEE ALSO:
  - app/app.go: Dependency wiring
  - api/server.go: Router configuration
  - config/config.go: Settings
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/api"
	"github.com/warp/booking-engine/app"
	"github.com/warp/booking-engine/config"
)

func main() {
	// Flags
	envFile := flag.String("env", ".env", "optional .env file")
	port := flag.Int("port", 0, "HTTP server port (overrides BOOKING_PORT)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	a.Reminders.Start()

	handler := api.NewHandler(a.Service, a.Credentials, logger)
	handler.Staff = a.Staff
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("data_dir", cfg.DataDir),
			zap.String("timezone", cfg.Timezone),
			zap.Strings("notifiers", cfg.Notifiers),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	a.Reminders.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
