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

	"github.com/yashwanth-3000/find.ai/internal/api"
	"github.com/yashwanth-3000/find.ai/internal/api/middleware"
	"github.com/yashwanth-3000/find.ai/internal/archive"
	"github.com/yashwanth-3000/find.ai/internal/config"
	"github.com/yashwanth-3000/find.ai/internal/importer"
	applogger "github.com/yashwanth-3000/find.ai/internal/logger"
	"github.com/yashwanth-3000/find.ai/internal/repository"
	"github.com/yashwanth-3000/find.ai/internal/scrape"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := applogger.NewDefault()
	applogger.SetDefault(logg)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logg.WithError(err).Fatal("Failed to initialize database")
	}
	profileRepo := repository.NewProfileRepository(db)

	scrapeClient := scrape.NewClient(&scrape.Config{
		BaseURL:   cfg.BrightData.BaseURL,
		APIToken:  cfg.BrightData.APIToken,
		DatasetID: cfg.BrightData.DatasetID,
		Timeout:   cfg.BrightData.Timeout,
	})

	events := importer.NewRingReporter(128)
	opts := []importer.Option{
		importer.WithLogger(logg),
		importer.WithReporter(importer.MultiReporter{
			importer.NewLogReporter(logg),
			events,
		}),
	}

	if cfg.Archive.Enabled {
		arch, err := archive.New(&archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
		})
		if err != nil {
			logg.WithError(err).Fatal("Failed to initialize snapshot archive")
		}
		opts = append(opts, importer.WithArchiver(arch))
	}

	importSvc := importer.New(importer.Config{
		MaxAttempts:  cfg.Import.MaxAttempts,
		PollInterval: cfg.Import.PollInterval,
		AutoStart:    cfg.Import.AutoStart,
	}, profileRepo, scrapeClient, opts...)

	router := api.SetupRouter(importSvc, profileRepo, events, logg, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logg.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logg.WithError(err).Error("HTTP server shutdown failed")
	}
	// Poll loops stop here; pending imports resume from persisted state on
	// the next start.
	if err := importSvc.Shutdown(ctx); err != nil {
		logg.WithError(err).Error("Importer shutdown timed out")
	}
	logg.Info("Server stopped")
}
