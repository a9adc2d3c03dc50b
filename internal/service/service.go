// Package service wires the cache, its durable backend, metrics, and the
// API server into one runnable unit.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/caseprep/caseprep/internal/cache"
	"github.com/caseprep/caseprep/internal/config"
	"github.com/caseprep/caseprep/internal/metrics"
	"github.com/caseprep/caseprep/internal/storage/file"
	"github.com/caseprep/caseprep/internal/storage/s3"
	"github.com/caseprep/caseprep/pkg/api"
	"github.com/caseprep/caseprep/pkg/logging"
	"github.com/caseprep/caseprep/pkg/types"
)

// Service is the assembled cache service.
type Service struct {
	config    *config.Configuration
	logger    *zap.Logger
	cache     *cache.AnalysisCache
	collector *metrics.Collector
	api       *api.Server
}

// New builds a service from the given configuration. The configuration is
// validated, the durable backend selected per its storage section, and the
// cache restored from whatever blob the backend holds.
func New(ctx context.Context, cfg *config.Configuration) (*Service, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Global.LogLevel, cfg.Global.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	backend, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	c := cache.New(&cache.Config{
		MaxAge:             cfg.Cache.MaxAge,
		MaxEntries:         cfg.Cache.MaxEntries,
		CompressionEnabled: cfg.Cache.CompressionEnabled,
		AutoCleanupEnabled: cfg.Cache.AutoCleanupEnabled,
		CleanupInterval:    cfg.Cache.CleanupInterval,
		DebounceWindow:     cfg.Cache.DebounceWindow,
	}, backend, logger)

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:        cfg.Monitoring.Metrics.Enabled,
		Port:           cfg.Monitoring.Metrics.Port,
		Path:           cfg.Monitoring.Metrics.Path,
		Namespace:      cfg.Monitoring.Metrics.Namespace,
		UpdateInterval: cfg.Monitoring.Metrics.UpdateInterval,
	}, logger)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("build metrics collector: %w", err)
	}
	collector.SetSource(c.Statistics)

	s := &Service{
		config:    cfg,
		logger:    logger,
		cache:     c,
		collector: collector,
	}
	if cfg.API.Address != "" {
		s.api = api.NewServer(cfg.API, c, logger)
	}

	return s, nil
}

// Cache returns the service's cache instance.
func (s *Service) Cache() *cache.AnalysisCache {
	return s.cache
}

// Start brings up the metrics endpoint and the API server. The cache itself
// is already serving from New.
func (s *Service) Start(ctx context.Context) error {
	if err := s.collector.Start(ctx); err != nil {
		return fmt.Errorf("start metrics collector: %w", err)
	}
	if s.api != nil {
		s.api.StartBackground()
	}
	s.logger.Info("cache service started",
		zap.String("backend", s.config.Storage.Backend),
		zap.Int("max_entries", s.config.Cache.MaxEntries))
	return nil
}

// Stop shuts down the outer surfaces and closes the cache, flushing any
// pending durable write.
func (s *Service) Stop(ctx context.Context) error {
	if s.api != nil {
		if err := s.api.Shutdown(ctx); err != nil {
			s.logger.Warn("API server shutdown failed", zap.Error(err))
		}
	}
	if err := s.collector.Stop(ctx); err != nil {
		s.logger.Warn("metrics collector shutdown failed", zap.Error(err))
	}
	s.cache.Close(ctx)
	s.logger.Info("cache service stopped")
	_ = s.logger.Sync()
	return nil
}

func buildBackend(ctx context.Context, cfg *config.Configuration, logger *zap.Logger) (types.Backend, error) {
	switch cfg.Storage.Backend {
	case "file":
		store, err := file.New(cfg.Storage.File.Path, cfg.Storage.File.QuotaBytes, logger)
		if err != nil {
			return nil, fmt.Errorf("build file store: %w", err)
		}
		return store, nil
	case "s3":
		store, err := s3.New(ctx, &cfg.Storage.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("build s3 store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
