package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"elevtiles/internal/cache"
	"elevtiles/internal/config"
	"elevtiles/internal/fetcher"
	httphandlers "elevtiles/internal/http"
	"elevtiles/internal/image_decoder"
	"elevtiles/internal/image_renderer"
	"elevtiles/internal/loader"
	"elevtiles/internal/logger"
	"elevtiles/internal/telemetry"
	"elevtiles/internal/tile"
	"elevtiles/internal/vips_decoder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Logger.Level)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.Vips.Concurrency,
		MaxCacheMem:      cfg.Vips.MaxCacheMB * 1024 * 1024, // Convert MB to bytes
		MaxCacheFiles:    0,                                 // Disable disk cache
		MaxCacheSize:     0,                                 // Disable disk cache
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	// Map vips log levels to zap levels
	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)
	defer vips.Shutdown()

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.Vips.MaxCacheMB),
		zap.Int("concurrency", cfg.Vips.Concurrency),
	)

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.TelemetryConfig())
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	decoder, err := newDecoder(cfg.Elevation.Decoder)
	if err != nil {
		log.Fatal("Failed to initialize decoder", zap.Error(err))
	}

	log.Info("Starting elevtiles server",
		zap.Int("port", cfg.HTTP.Port),
		zap.String("url_template", cfg.Elevation.URLTemplate),
		zap.String("decoder", cfg.Elevation.Decoder),
		zap.Int("max_in_flight", cfg.Loader.MaxInFlight),
		zap.Int("downscale_times", cfg.Loader.DownscaleTimes),
	)

	f := fetcher.New(cfg.Elevation.URLTemplate, cfg.Elevation.UserAgent, cfg.Elevation.Timeout, log)
	tileLoader := loader.New(cfg.LoaderConfig(), cache.NewMemoryCache(), f, decoder, log)
	renderer := image_renderer.New(cfg.Preview.TileSize, log)

	stopUpdates := make(chan struct{})
	updatesDone := make(chan struct{})
	go runUpdates(tileLoader, cfg.Loader.UpdateInterval, stopUpdates, updatesDone)

	warmupCtx, cancelWarmup := context.WithCancel(context.Background())
	defer cancelWarmup()
	go warmupTiles(warmupCtx, cfg, tileLoader, log)

	handlers := httphandlers.New(cfg, log, tileLoader, renderer)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handlers.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.HTTP.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	cancelWarmup()
	close(stopUpdates)
	<-updatesDone
	tileLoader.Close()

	if err := shutdownTracing(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server stopped")
}

func newDecoder(kind string) (image_decoder.Decoder, error) {
	switch kind {
	case "vips", "":
		return vips_decoder.New(), nil
	case "std":
		return image_decoder.NewStdDecoder(), nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", kind)
	}
}

// runUpdates drives the loader: admission and eviction only happen in Update.
func runUpdates(l *loader.Loader, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Update()
		}
	}
}

// warmupTiles loads the configured tiles under one owner that is never
// released, so they stay resident for the life of the process.
func warmupTiles(ctx context.Context, cfg *config.Config, l *loader.Loader, log *zap.Logger) {
	coords, invalid := cfg.WarmupCoords()
	for _, s := range invalid {
		log.Warn("Ignoring invalid warmup tile", zap.String("tile", s))
	}
	if len(coords) == 0 {
		return
	}

	log.Info("Starting tile warmup", zap.Int("tiles", len(coords)))

	owner := tile.NewOwner()

	// Keep no more callers blocked than the loader can serve at once
	workerLimit := cfg.Loader.MaxInFlight
	if workerLimit <= 0 {
		workerLimit = 1
	}

	workerChan := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	loaded := 0

	for _, coord := range coords {
		select {
		case workerChan <- struct{}{}: // Acquire worker slot
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)

		go func(coord tile.Coord) {
			defer wg.Done()
			defer func() { <-workerChan }() // Release worker slot

			if _, err := l.GetOrLoadTile(ctx, coord, owner); err != nil {
				log.Warn("Warmup tile failed", zap.Int("z", coord.Z), zap.Int("x", coord.X), zap.Int("y", coord.Y), zap.Error(err))
				return
			}
			mu.Lock()
			loaded++
			mu.Unlock()
		}(coord)
	}

	wg.Wait()
	log.Info("Tile warmup completed", zap.Int("loaded", loaded), zap.Int("requested", len(coords)))
}
