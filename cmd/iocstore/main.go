package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/config"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/eventbus"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/health"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/store"
)

func main() {
	log.Printf("Starting IOC store...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	registry := store.NewRegistry()
	unified, err := store.NewUnifiedStore(registry, cfg.UnifiedConfig())
	if err != nil {
		log.Fatalf("Failed to build unified store: %v", err)
	}

	ctx := context.Background()
	if err := unified.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize unified store: %v", err)
	}

	var defaultStore store.ComprehensiveStore = unified

	var publisher *eventbus.Publisher
	if cfg.EnableEvents {
		publisher, err = eventbus.NewPublisher(cfg.NatsURL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
		defaultStore = eventbus.NewPublishingStore(unified, publisher)
	}

	manager := store.NewManager(registry)
	manager.SetDefaultStore(defaultStore)

	// Periodic health refresh keeps the failover table current even
	// when traffic is idle.
	healthTicker := time.NewTicker(time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second)
	defer healthTicker.Stop()
	go func() {
		for range healthTicker.C {
			if !unified.HealthCheck(ctx) {
				log.Printf("Unified store degraded: %v", unified.HealthSnapshot())
			}
		}
	}()

	healthServer := health.NewHealthServer(manager)
	go func() {
		log.Printf("Health check listening on :%s", cfg.HealthPort)
		if err := healthServer.Start(":" + cfg.HealthPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health check server failed: %v", err)
		}
	}()

	log.Printf("IOC store ready (primary=%s fallbacks=%v)", cfg.PrimaryStore, cfg.FallbackStores)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Printf("Shutting down IOC store...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	healthServer.Shutdown(shutdownCtx)
	if err := manager.CloseAll(shutdownCtx); err != nil {
		log.Printf("Error closing stores: %v", err)
	}
}
