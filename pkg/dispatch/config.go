package dispatch

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvMaxCallstackDepth = "CHANGETRACK_MAX_CALLSTACK_DEPTH"
	EnvMetrics           = "CHANGETRACK_METRICS"
	EnvMetricsName       = "CHANGETRACK_METRICS_NAME"
)

// Metrics exporter names accepted in CHANGETRACK_METRICS.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Config is the environment-driven part of a dispatcher's setup.
type Config struct {
	// MaxCallstackDepth bounds reentrancy; zero disables the guard.
	MaxCallstackDepth int
	// Metrics selects the exporter: none, expvar or prometheus.
	Metrics string
	// MetricsName is the expvar name or the prometheus namespace.
	MetricsName string
}

// ConfigFromEnv reads Config from the environment. Unset variables keep their
// zero defaults.
func ConfigFromEnv() (Config, error) {
	cfg := Config{Metrics: MetricsNone}
	if raw := strings.TrimSpace(os.Getenv(EnvMaxCallstackDepth)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%s: invalid depth %q", EnvMaxCallstackDepth, raw)
		}
		cfg.MaxCallstackDepth = n
	}
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvMetrics))); raw != "" {
		switch raw {
		case MetricsNone, MetricsExpvar, MetricsPrometheus:
			cfg.Metrics = raw
		default:
			return Config{}, fmt.Errorf("%s: unknown exporter %q", EnvMetrics, raw)
		}
	}
	cfg.MetricsName = strings.TrimSpace(os.Getenv(EnvMetricsName))
	return cfg, nil
}

// Options converts the config into dispatcher options. Prometheus collectors
// are registered with reg, or with the default registerer when reg is nil.
func (c Config) Options(reg prometheus.Registerer) ([]Option, error) {
	var opts []Option
	if c.MaxCallstackDepth > 0 {
		opts = append(opts, WithMaxCallstackDepth(c.MaxCallstackDepth))
	}
	switch c.Metrics {
	case "", MetricsNone:
	case MetricsExpvar:
		opts = append(opts, WithMetricsRecorder(NewExpvarMetricsRecorder(c.MetricsName)))
	case MetricsPrometheus:
		rec, err := NewPrometheusMetricsRecorder(reg, c.MetricsName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithMetricsRecorder(rec))
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", c.Metrics)
	}
	return opts, nil
}

// NewFromEnv builds a dispatcher from the environment. Options given
// explicitly are applied after the environment and win over it.
func NewFromEnv(opts ...Option) (*Dispatcher, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	envOpts, err := cfg.Options(nil)
	if err != nil {
		return nil, err
	}
	return New(append(envOpts, opts...)...), nil
}
