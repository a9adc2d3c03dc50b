package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caseprep/caseprep/pkg/types"
)

// StatsSource supplies the current cache statistics snapshot.
type StatsSource func() types.CacheStatistics

// Config represents metrics configuration.
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	Namespace      string        `yaml:"namespace"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// Collector exposes cache statistics as Prometheus metrics over HTTP. It
// polls a StatsSource on a fixed interval and publishes counter deltas and
// gauge values against its own registry.
type Collector struct {
	mu       sync.Mutex
	config   *Config
	logger   *zap.Logger
	registry *prometheus.Registry
	source   StatsSource
	last     types.CacheStatistics

	requestCounter   *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	errorCounter     *prometheus.CounterVec
	evictionCounter  prometheus.Counter
	hitRateGauge     prometheus.Gauge
	itemCountGauge   prometheus.Gauge
	sizeBytesGauge   prometheus.Gauge
	avgLatencyGauge  prometheus.Gauge

	server *http.Server
}

// NewCollector creates a metrics collector. A disabled config yields an
// inert collector whose methods are all no-ops.
func NewCollector(config *Config, logger *zap.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:        true,
			Port:           9090,
			Path:           "/metrics",
			Namespace:      "caseprep",
			UpdateInterval: 30 * time.Second,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = 30 * time.Second
	}

	c := &Collector{config: config, logger: logger.Named("metrics")}
	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return c, nil
}

// SetSource registers the statistics provider polled by the update loop.
func (c *Collector) SetSource(source StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
}

// Start serves the metrics endpoint and begins polling the stats source.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go c.updateLoop(ctx)

	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// Update publishes the given statistics snapshot. Counters advance by the
// delta against the previous snapshot, so a polled cumulative record maps
// cleanly onto Prometheus counter semantics.
func (c *Collector) Update(s types.CacheStatistics) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestCounter.WithLabelValues("hit").Add(counterDelta(s.CacheHits, c.last.CacheHits))
	c.requestCounter.WithLabelValues("miss").Add(counterDelta(s.CacheMisses, c.last.CacheMisses))

	c.operationCounter.WithLabelValues("get").Add(counterDelta(s.Operations.Get, c.last.Operations.Get))
	c.operationCounter.WithLabelValues("set").Add(counterDelta(s.Operations.Set, c.last.Operations.Set))
	c.operationCounter.WithLabelValues("delete").Add(counterDelta(s.Operations.Delete, c.last.Operations.Delete))
	c.operationCounter.WithLabelValues("cleanup").Add(counterDelta(s.Operations.Cleanup, c.last.Operations.Cleanup))

	c.errorCounter.WithLabelValues("storage").Add(counterDelta(s.Errors.Storage, c.last.Errors.Storage))
	c.errorCounter.WithLabelValues("compression").Add(counterDelta(s.Errors.Compression, c.last.Errors.Compression))
	c.errorCounter.WithLabelValues("parse").Add(counterDelta(s.Errors.Parse, c.last.Errors.Parse))
	c.errorCounter.WithLabelValues("network").Add(counterDelta(s.Errors.Network, c.last.Errors.Network))

	c.evictionCounter.Add(counterDelta(s.Memory.EvictionCount, c.last.Memory.EvictionCount))

	c.hitRateGauge.Set(s.HitRate)
	c.itemCountGauge.Set(float64(s.ItemCount))
	c.sizeBytesGauge.Set(float64(s.SizeBytes))
	c.avgLatencyGauge.Set(s.AverageResponseTimeMs)

	c.last = s
}

// Registry returns the collector's Prometheus registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) initMetrics() error {
	ns := c.config.Namespace

	c.requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of cache requests by outcome",
		},
		[]string{"outcome"},
	)

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of swallowed cache errors by kind",
		},
		[]string{"kind"},
	)

	c.evictionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of LRU evictions",
		},
	)

	c.hitRateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "hit_rate",
			Help:      "Cumulative cache hit rate",
		},
	)

	c.itemCountGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "item_count",
			Help:      "Current number of in-memory cache entries",
		},
	)

	c.sizeBytesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "size_bytes",
			Help:      "Current in-memory cache size in bytes",
		},
	)

	c.avgLatencyGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "avg_response_time_ms",
			Help:      "Running average cache response time in milliseconds",
		},
	)

	collectors := []prometheus.Collector{
		c.requestCounter,
		c.operationCounter,
		c.errorCounter,
		c.evictionCounter,
		c.hitRateGauge,
		c.itemCountGauge,
		c.sizeBytesGauge,
		c.avgLatencyGauge,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) updateLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			source := c.source
			c.mu.Unlock()
			if source != nil {
				c.Update(source())
			}
		}
	}
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"caseprep-cache-metrics"}`))
}

// counterDelta guards against a reset source (e.g. explicit statistics
// reset) driving a Prometheus counter backwards.
func counterDelta(current, previous uint64) float64 {
	if current < previous {
		return 0
	}
	return float64(current - previous)
}
