package observability

import (
	"strings"

	"github.com/emadn88/elmcorner/internal/config"
)

const defaultServiceName = "elmcorner"

// Config is the telemetry view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Telemetry   config.TelemetryConfig
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	telemetry := cfg.Telemetry
	if telemetry.SamplingRatio < 0 || telemetry.SamplingRatio > 1 {
		telemetry.SamplingRatio = 1
	}
	return Config{
		ServiceName: name,
		Environment: strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Telemetry:   telemetry,
	}
}

// Debug is on for debug log level and for local environments.
func (c Config) Debug() bool {
	if c.Telemetry.LogLevel == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
