// Package app wires the process-scoped state into one HTTP handler and runs
// it with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wudi/faultbox/internal/api"
	"github.com/wudi/faultbox/internal/chaos"
	"github.com/wudi/faultbox/internal/config"
	"github.com/wudi/faultbox/internal/faults"
	"github.com/wudi/faultbox/internal/health"
	"github.com/wudi/faultbox/internal/logging"
	"github.com/wudi/faultbox/internal/metrics"
	"github.com/wudi/faultbox/internal/middleware"
	"github.com/wudi/faultbox/internal/router"
	"github.com/wudi/faultbox/internal/tracing"
	"go.uber.org/zap"
)

// MetricsRoute serves the scrape endpoint.
const MetricsRoute = "/metrics"

// App holds the state shared by every request of the process.
type App struct {
	cfg       *config.Config
	registry  *metrics.Registry
	collector *metrics.Collector
	injector  *faults.Injector
	tracer    *tracing.Tracer
	router    *router.Router
	handler   http.Handler
}

type options struct {
	faultSource faults.Source
	apiSource   faults.Source
	runtime     bool
	tracer      *tracing.Tracer
	logger      *zap.Logger
}

// Option customizes App construction.
type Option func(*options)

// WithFaultSource fixes the random source of the fault injector.
func WithFaultSource(src faults.Source) Option {
	return func(o *options) { o.faultSource = src }
}

// WithAPISource fixes the random source of the sample endpoints.
func WithAPISource(src faults.Source) Option {
	return func(o *options) { o.apiSource = src }
}

// WithoutRuntimeMetrics skips the Go runtime and process collectors.
func WithoutRuntimeMetrics() Option {
	return func(o *options) { o.runtime = false }
}

// WithTracer uses t instead of building one from the tracing config.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithLogger sends request records to l instead of the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the registry, injector, leak buffer and handlers described by
// cfg and mounts them on one router.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{runtime: true}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg}

	a.registry = metrics.NewRegistry(o.runtime)
	collector, err := metrics.NewCollector(a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	a.collector = collector

	injOpts := []faults.Option{faults.WithRecorder(collector)}
	if o.faultSource != nil {
		injOpts = append(injOpts, faults.WithSource(o.faultSource))
	}
	a.injector, err = faults.NewInjector(faults.Policy{
		FailureRate:  cfg.Faults.FailureRate,
		FixedDelay:   cfg.Faults.SlowResponse(),
		ForceUnready: cfg.Faults.ForceUnready,
	}, injOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid fault policy: %w", err)
	}

	a.tracer = o.tracer
	if a.tracer == nil {
		a.tracer, err = tracing.New(ctx, TracingConfig(cfg.Tracing))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	rtOpts := router.Options{
		Recorder: collector,
		Injector: a.injector,
		Exempt:   cfg.Faults.ExemptRoutes,
		Logger:   o.logger,
	}
	if a.tracer.IsEnabled() {
		rtOpts.Tracing = a.tracer.Middleware
	}
	a.router = router.New(rtOpts)

	chaos.NewHandlers(chaos.Config{
		DefaultLeakSize: cfg.Chaos.DefaultLeakSize,
		MaxLeakSize:     cfg.Chaos.MaxLeakSize,
		DefaultSpike:    cfg.Chaos.DefaultCPUSpike,
		MaxSpike:        cfg.Chaos.MaxCPUSpike,
		ErrorDelay:      cfg.Chaos.ErrorDelay,
		BodyLimit:       cfg.Server.MaxBodySize,
	}, chaos.NewLeakBuffer(collector.SetLeakEntries), collector).Register(a.router)

	health.NewHandlers(cfg.Faults.ForceUnready).Register(a.router)

	api.NewHandlers(api.Config{
		UserSlowRate:     cfg.API.UserSlowRate,
		UserSlowDelay:    cfg.API.UserSlowDelay,
		OrderFailureRate: cfg.API.OrderFailureRate,
		BodyLimit:        cfg.Server.MaxBodySize,
	}, o.apiSource).Register(a.router)

	a.router.Handle(http.MethodGet, MetricsRoute, collector.Handler(logging.StdLogger("metrics")))

	a.handler = middleware.RequestID()(a.router)

	logging.Info("Routes registered",
		zap.Int("routes", len(a.router.Routes())),
		zap.Float64("failure_rate", cfg.Faults.FailureRate),
		zap.Duration("slow_response", cfg.Faults.SlowResponse()),
		zap.Bool("force_unready", cfg.Faults.ForceUnready),
		zap.Bool("tracing", a.tracer.IsEnabled()),
	)
	return a, nil
}

// Handler returns the root handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Routes lists the mounted routes.
func (a *App) Routes() []router.Route {
	return a.router.Routes()
}

// Collector returns the process metrics collector.
func (a *App) Collector() *metrics.Collector {
	return a.collector
}

// Close flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	return a.tracer.Shutdown(ctx)
}

// LoggingConfig maps the logging section onto logger construction options.
func LoggingConfig(c config.LoggingConfig) logging.Config {
	return logging.Config{
		Level:      c.Level,
		Output:     c.Output,
		File:       c.File,
		ErrorFile:  c.ErrorFile,
		MaxSize:    c.Rotation.MaxSize,
		MaxBackups: c.Rotation.MaxBackups,
		MaxAge:     c.Rotation.MaxAge,
		Compress:   c.Rotation.Compress,
		LocalTime:  c.Rotation.LocalTime,
	}
}

// TracingConfig maps the tracing section onto exporter options.
func TracingConfig(c config.TracingConfig) tracing.Config {
	return tracing.Config{
		Enabled:     c.Enabled,
		Endpoint:    c.Endpoint,
		ServiceName: c.ServiceName,
		SampleRate:  c.SampleRate,
		Insecure:    c.Insecure,
		Headers:     c.Headers,
	}
}
