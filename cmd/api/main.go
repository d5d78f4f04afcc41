package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"groomly/internal/api"
	"groomly/internal/availability"
	"groomly/internal/booking"
	"groomly/internal/config"
	"groomly/internal/events"
	"groomly/internal/export"
	"groomly/internal/logging"
	"groomly/internal/metrics"
	"groomly/internal/models"
	"groomly/internal/repository"
	"groomly/internal/store"
	"groomly/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, shops, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg); err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Database.Path, store.TxnOptions{
		MaxAttempts: cfg.Booking.TxnMaxAttempts,
		RetryDelay:  cfg.Booking.TxnRetryDelay(),
		MaxDelay:    cfg.Booking.TxnMaxDelay(),
	}, &logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient, snapshots := initSnapshots(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := events.NewEventBus()
	observer := availability.NewObserver(st, snapshots, eventBus, &logger)

	if cfg.Notifications.Enabled {
		notifier := worker.NewLogNotifier(&logger)
		notifyWorker := worker.NewNotifyWorker(notifier, worker.RetryPolicy{
			MaxRetries:    cfg.Notifications.MaxRetries,
			InitialDelay:  cfg.Notifications.RetryDelay(),
			MaxDelay:      cfg.Notifications.RetryMaxDelay(),
			BackoffFactor: 2,
		}, cfg.Notifications.QueueSize, &logger)
		notifyWorker.SubscribeBus(eventBus)
		go notifyWorker.Start(ctx)
	}

	bookingService := booking.NewService(st, eventBus, cfg.Booking.MaxAdvanceDays, &logger)

	if cfg.Backup.Enabled {
		backupService := store.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.API.Enabled && cfg.API.HTTP.Enabled {
		var exporter api.ScheduleExporter
		if cfg.Exports.Path != "" {
			exporter = export.NewExporter(bookingService, cfg.Exports.Path, &logger)
		}
		apiServer := api.NewHTTPServer(cfg.API, bookingService, observer, exporter, shops, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("api server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Int("shops", len(shops)).Msg("groomly started")
	<-ctx.Done()
	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, []models.Shop, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	shops, err := loadShops(cfg.ShopsFile)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.ShopsFile).Msg("load shops")
		return nil, nil, zerolog.Logger{}, closer, err
	}

	return cfg, shops, logger, closer, nil
}

func loadShops(path string) ([]models.Shop, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var shopsConfig struct {
		Shops []models.Shop `yaml:"shops"`
	}
	if err := yaml.Unmarshal(data, &shopsConfig); err != nil {
		return nil, err
	}
	if len(shopsConfig.Shops) == 0 {
		return nil, fmt.Errorf("no shops configured in %s", path)
	}

	seen := make(map[string]bool, len(shopsConfig.Shops))
	for _, shop := range shopsConfig.Shops {
		if shop.ID == "" {
			return nil, fmt.Errorf("shop %q has empty id", shop.Name)
		}
		if seen[shop.ID] {
			return nil, fmt.Errorf("duplicate shop id %q", shop.ID)
		}
		seen[shop.ID] = true
	}

	return shopsConfig.Shops, nil
}

func prepareDirectories(cfg *config.Config) error {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return err
		}
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func initSnapshots(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *repository.FailoverSnapshotRepository) {
	ttl := time.Duration(cfg.Snapshots.TTLSeconds) * time.Second
	fallback := repository.NewMemorySnapshotRepository(ttl)

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, snapshots fall back to memory")
		}
	}

	primary := repository.NewRedisSnapshotRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverSnapshotRepository(primary, fallback, logger)
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
