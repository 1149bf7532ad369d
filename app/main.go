package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heymamamama/podkop/app/api"
	"github.com/heymamamama/podkop/app/cache"
	"github.com/heymamamama/podkop/app/cfg"
	"github.com/heymamamama/podkop/app/config"
	"github.com/heymamamama/podkop/app/database"
	"github.com/heymamamama/podkop/app/subscription"
	"github.com/heymamamama/podkop/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Podkop server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schemaVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", schemaVersion, "dirty", dirty)

	configCache := config.NewConfigCache(appCfg.ConfigPath)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load section configuration", "path", appCfg.ConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Section configuration loaded", "path", appCfg.ConfigPath, "sections", configCache.GetSectionCount(), "subscribed", len(configCache.GetSubscribedSections()))

	store, err := cache.NewStore(appCfg.CacheDir)
	if err != nil {
		slog.Error("Failed to initialize cache store", "dir", appCfg.CacheDir, "error", err)
		os.Exit(1)
	}

	fetcher := subscription.NewFetcher(nil, time.Duration(appCfg.FetchTimeout)*time.Second)
	filterer := subscription.NewFilterer()
	service := subscription.NewService(fetcher, filterer, store)

	updateRepo := database.NewUpdateRepository(db)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(configCache, service, updateRepo)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(configCache, service, store, updateRepo, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
