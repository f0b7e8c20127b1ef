package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kris96tian/MOFAX-Online/adapters/hdf5"
	"github.com/kris96tian/MOFAX-Online/adapters/memory"
	"github.com/kris96tian/MOFAX-Online/app"
	"github.com/kris96tian/MOFAX-Online/internal"
	"github.com/kris96tian/MOFAX-Online/internal/config"
	"github.com/kris96tian/MOFAX-Online/internal/metrics"
	"github.com/kris96tian/MOFAX-Online/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Log.Level)).With("Main")
	gin.SetMode(appConfig.Server.GinMode)

	m := metrics.New()
	cache, err := app.NewDerivationCache(appConfig.Cache.Size, m)
	if err != nil {
		log.Fatalf("Failed to create derivation cache: %v", err)
	}
	loader := app.NewModelLoader(hdf5.NewReader(), appConfig.Upload.Dir, appConfig.Upload.MaxBytes, m)

	store := memory.NewSessionStore(appConfig.Session.TTL, app.ReleaseFunc(loader, cache))
	store.StartJanitor(appConfig.Session.SweepInterval)

	service := app.NewExplorationService(loader, store, cache, m, appConfig.UI.DefaultNFeatures)

	server, err := ui.NewServer(service, m, ui.Options{
		Addr:          ":" + appConfig.Server.Port,
		ReadTimeout:   appConfig.Server.ReadTimeout,
		WriteTimeout:  appConfig.Server.WriteTimeout,
		EnableMetrics: appConfig.Metrics.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	logger.Info("Uploads staged in %s (limit %d bytes), sessions expire after %s",
		appConfig.Upload.Dir, appConfig.Upload.MaxBytes, appConfig.Session.TTL)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed: %v", err)
		}
	case sig := <-stop:
		logger.Info("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown failed: %v", err)
		}
		cancel()
	}

	// Releases every session's model, which removes staged uploads
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close session store: %v", err)
	}
	logger.Info("Stopped")
}
