package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"camclip/annotation"
	"camclip/api"
	"camclip/catalog"
	"camclip/concat"
	"camclip/config"
	"camclip/database"
	"camclip/metrics"
	"camclip/monitoring"
	"camclip/service"
	"camclip/storage"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()
	config.EnsurePaths(cfg)

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	cat := catalog.NewFSCatalog(cfg.RecordingsPath, cfg.SegmentDuration)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	var r2 *storage.R2Storage
	if cfg.R2Enabled {
		r2, err = storage.NewR2Storage(storage.R2Config{
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			AccountID: cfg.R2AccountID,
			Bucket:    cfg.R2Bucket,
			Endpoint:  cfg.R2Endpoint,
			Region:    cfg.R2Region,
			BaseURL:   cfg.R2BaseURL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize R2 storage: %v", err)
		}
	}

	concatenator := concat.NewFFmpegConcatenator(cfg.FFmpegTimeout)
	concatenator.BinaryPath = cfg.FFmpegPath
	annotations := annotation.NewWriter(cfg.AnnotationsPath, cfg.SourceTag)

	scheduler := service.NewScheduler(cfg, db, cat, concatenator, annotations, r2, collector)

	ctx, cancel := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedulerDone)
	}()

	monitor, err := monitoring.NewMonitor(cfg.RecordingsPath)
	if err != nil {
		log.Fatalf("Failed to initialize monitoring: %v", err)
	}
	monitor.Start(cfg.MonitorInterval)
	defer monitor.Stop()

	server := api.NewServer(cfg, db, cat, scheduler, monitor, registry)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal, then drain: stop intake first, then let
	// in-flight jobs run to completion.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("API server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), api.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("API server shutdown error: %v", err)
	}

	cancel()
	<-schedulerDone
	log.Println("Shutdown complete")
}
