package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rolesclub/rolesbot/internal/api"
	"github.com/rolesclub/rolesbot/internal/config"
	"github.com/rolesclub/rolesbot/internal/gateway"
	"github.com/rolesclub/rolesbot/internal/handlers"
	"github.com/rolesclub/rolesbot/internal/registry"
	"github.com/rolesclub/rolesbot/internal/service"
	"github.com/rolesclub/rolesbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting RolesClubBot...")

	// Tenant registry: one context per club from the manifest.
	reg, err := registry.Load(cfg.ClubsDir, l)
	if err != nil {
		l.Fatalf("Failed to load club registry: %v", err)
	}

	// Outbound gateway
	gw := gateway.NewClient(cfg.GupshupAPIKey, cfg.GupshupSource, cfg.GupshupAppName, l)

	// Engine and router
	svc := service.New(l)
	router := handlers.NewRouter(reg, svc, gw, l)

	// HTTP server for the webhook
	apiServer := api.NewServer(router, reg, cfg.GupshupAppName, cfg.VerifyToken, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	l.Info("RolesClubBot started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP shutdown error: %v", err)
	}

	l.Info("RolesClubBot stopped")
}
