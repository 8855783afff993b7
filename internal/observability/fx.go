package observability

import (
	"github.com/emadn88/elmcorner/internal/observability/logger"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	"github.com/emadn88/elmcorner/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName:         cfg.ServiceName,
				Environment:         cfg.Environment,
				Version:             cfg.Version,
				Level:               cfg.Telemetry.LogLevel,
				Format:              cfg.Telemetry.LogFormat,
				Debug:               cfg.Debug(),
				IncludeCaller:       true,
				IncludeStackOnError: cfg.Debug(),
			}
		},
		logger.New,
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Telemetry.OtelEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
				ExporterProtocol: cfg.Telemetry.OTLPProtocol,
				SamplingRatio:    cfg.Telemetry.SamplingRatio,
			}
		},
		tracing.NewProvider,
		func(cfg Config) metrics.Config {
			return metrics.Config{
				Enabled:          cfg.Telemetry.OtelEnabled,
				ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
				ExporterProtocol: cfg.Telemetry.OTLPProtocol,
				ServiceName:      cfg.ServiceName,
				Environment:      cfg.Environment,
			}
		},
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.LocksWithConfig,
	),
	// The tracer provider installs itself globally; nothing else depends on it.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
