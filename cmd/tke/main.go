// tke runs the HTTP API exposing the troubleshooting knowledge
// engine's ingest/query/delete/stats operations and the operator review
// queue.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/unergybot/tke/pkg/api"
	"github.com/unergybot/tke/pkg/app"
	"github.com/unergybot/tke/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	imagesDir := flag.String("images-dir",
		getEnv("IMAGES_DIR", "./data/images"),
		"Path extracted case images are written under")
	renderDir := flag.String("render-dir",
		getEnv("RENDER_DIR", "./data/renders"),
		"Path rendered validation pages are written under")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("starting", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, *configDir, *imagesDir, *renderDir)
	if err != nil {
		log.Fatalf("failed to wire application: %v", err)
	}
	defer application.DB.Close()

	slog.Info("configuration loaded", "protected_tools", application.Config.Stats().ProtectedTools)

	server := api.NewServer(application.Orch, application.Reviews, application.DB)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", httpPort)
		if err := server.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		log.Fatalf("http server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
