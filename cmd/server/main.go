package main

import (
	"context"
	"errors"
	"log"
	netHttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"student-portal/app"
	"student-portal/config"
	"student-portal/db"
	"student-portal/http"
	"student-portal/logger"
	"student-portal/services/kafka"
	"student-portal/telemetry"
)

func main() {
	// Determine project root by searching upward for go.mod
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal("Error getting current working directory:", err)
	}

	if absProjectRoot := findProjectRoot(cwd); absProjectRoot != "" {
		if err := os.Chdir(absProjectRoot); err != nil {
			log.Fatal("Error changing to project root:", err)
		}
		logger.Info("Working directory set to project root: %s", absProjectRoot)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Error loading configuration: %v", err)
	}
	logger.Default().SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx := context.Background()
	if err := telemetry.Init(ctx, "student-portal-bridge", cfg.OTLPEndpoint); err != nil {
		logger.Warn("Tracing disabled: %v", err)
	}

	// Initialize Kafka producer (non-fatal)
	kafka.InitProducer()

	// Initialize database
	if err := db.InitDB(); err != nil {
		logger.Fatal("Error initializing database: %v", err)
	}

	bridge, err := app.New(cfg, db.DB)
	if err != nil {
		logger.Fatal("Error wiring payment bridge: %v", err)
	}

	srv := &netHttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.NewRouter(bridge.Handler(), nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, netHttp.ErrServerClosed) {
			logger.Fatal("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down server: %v", err)
	}

	bridge.Close()

	// Close Kafka producer gracefully
	if err := kafka.Close(); err != nil {
		logger.Error("Error closing Kafka producer: %v", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error flushing traces: %v", err)
	}
	if err := db.DB.Close(); err != nil {
		logger.Error("Error closing database: %v", err)
	}

	logger.Info("Server shutdown complete")
	logger.Default().Sync()
}

// findProjectRoot walks up from start and returns the first directory containing go.mod
func findProjectRoot(start string) string {
	dir := start
	for {
		// check for go.mod
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		// move up
		parent := filepath.Dir(dir)
		if parent == dir || strings.HasSuffix(dir, ":\\") || parent == "" {
			break
		}
		dir = parent
	}
	return ""
}
