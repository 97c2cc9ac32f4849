// Package main is the entry point for the LacyLights patch server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bbernstein/lacylights-patch/internal/api"
	"github.com/bbernstein/lacylights-patch/internal/config"
	"github.com/bbernstein/lacylights-patch/internal/database"
	"github.com/bbernstein/lacylights-patch/internal/database/repositories"
	"github.com/bbernstein/lacylights-patch/internal/patch"
	"github.com/bbernstein/lacylights-patch/internal/services/dmx"
	"github.com/bbernstein/lacylights-patch/internal/services/network"
	"github.com/bbernstein/lacylights-patch/internal/services/pubsub"
	"github.com/bbernstein/lacylights-patch/internal/services/show"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	printBanner(cfg)

	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	log.Println("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrations complete")

	settingRepo := repositories.NewSettingRepository(db)
	broadcast := resolveBroadcast(context.Background(), cfg, settingRepo)

	dmxService := dmx.NewService(dmx.Config{
		Enabled:          cfg.ArtNetEnabled,
		BroadcastAddr:    broadcast,
		Port:             cfg.ArtNetPort,
		UniverseCount:    cfg.DMXUniverseCount,
		RefreshRateHz:    cfg.DMXRefreshRate,
		IdleRateHz:       cfg.DMXIdleRate,
		HighRateDuration: cfg.DMXHighRateDuration,
	})
	if err := dmxService.Initialize(); err != nil {
		log.Printf("Warning: DMX service initialization failed: %v", err)
		// Continue anyway - DMX may be disabled or broadcast address unavailable
	}

	ps := pubsub.New()
	registry := patch.NewRegistry(dmxService, ps)
	showService := show.NewService(
		registry,
		repositories.NewProfileRepository(db),
		repositories.NewChannelRepository(db),
		repositories.NewCueRepository(db),
	)
	if _, err := showService.LoadPatch(context.Background()); err != nil {
		log.Fatalf("Failed to load patch: %v", err)
	}

	server := api.NewServer(showService, dmxService, settingRepo, ps, api.Options{
		Version:          Version,
		CORSOrigins:      corsOrigins(cfg),
		Debug:            cfg.IsDevelopment(),
		StreamBufferSize: cfg.WSBufferSize,
		PingInterval:     cfg.WSPingInterval,
		DefaultBroadcast: defaultBroadcast(cfg),
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("Event stream: ws://localhost:%s/ws\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	dmxService.Stop()

	log.Println("Server stopped")
}

// broadcastStore is the part of the setting repository used at startup.
type broadcastStore interface {
	BroadcastAddress(ctx context.Context) (string, error)
}

// resolveBroadcast picks the Art-Net target: the saved setting, then the
// configured address, then the global broadcast.
func resolveBroadcast(ctx context.Context, cfg *config.Config, settings broadcastStore) string {
	if settings != nil {
		saved, err := settings.BroadcastAddress(ctx)
		if err != nil {
			log.Printf("Warning: failed to read saved broadcast address: %v", err)
		} else if saved != "" {
			if err := network.ValidateBroadcast(saved); err == nil {
				log.Printf("📡 Loading saved Art-Net broadcast address: %s", saved)
				return saved
			}
			log.Printf("Warning: ignoring saved broadcast address %q", saved)
		}
	}
	return defaultBroadcast(cfg)
}

// defaultBroadcast is the target used when nothing has been saved.
func defaultBroadcast(cfg *config.Config) string {
	if cfg.ArtNetBroadcast != "" {
		return cfg.ArtNetBroadcast
	}
	return network.GlobalBroadcast
}

// corsOrigins returns the configured origin plus the local development origins.
func corsOrigins(cfg *config.Config) []string {
	origins := []string{}
	seen := map[string]bool{}
	for _, o := range []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"} {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  LacyLights Patch Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Art-Net:     %v\n", cfg.ArtNetEnabled)
	fmt.Printf("  Universes:   %d\n", cfg.DMXUniverseCount)
	fmt.Println("============================================")
}
