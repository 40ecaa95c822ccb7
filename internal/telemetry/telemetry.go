// Package telemetry provides the named metric sources the Chaos Conductor
// samples from: telemetry, federated memory, LLM transducer, HRC and OS.
// Internal subsystems push readings into a Registry; the conductor reads
// them back through the MetricSource contract.
package telemetry

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Canonical provider names from the metric-source contract.
const (
	ProviderTelemetry        = "telemetry"
	ProviderFederatedMemory  = "federated_memory"
	ProviderLLMTransducer    = "llm_transducer"
	ProviderHRC              = "hrc"
	ProviderOS               = "os"
)

// MetricSource exposes named metrics with a default value for when the
// metric cannot currently be read.
type MetricSource interface {
	// GetMetric returns the metric's current value, or ok=false if the
	// provider has no reading for name.
	GetMetric(name string) (value float64, ok bool)
}

// Registry is a prometheus-backed MetricSource. Subsystems Declare each
// metric they own once at startup and Set it as readings change; the Chaos
// Conductor reads the latest value back through GetMetric.
type Registry struct {
	mu       sync.RWMutex
	registry *prometheus.Registry
	gauges   map[string]prometheus.Gauge
	defaults map[string]float64
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
		defaults: make(map[string]float64),
	}
}

// Declare registers a gauge for name, initialized to defaultValue. Declaring
// the same name twice is a no-op; the first declaration wins.
func (r *Registry) Declare(name, help string, defaultValue float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.gauges[name]; exists {
		return
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: sanitizeMetricName(name), Help: help})
	g.Set(defaultValue)
	r.registry.MustRegister(g)
	r.gauges[name] = g
	r.defaults[name] = defaultValue
}

// Set updates a declared metric's current value. Setting an undeclared
// metric is a no-op.
func (r *Registry) Set(name string, value float64) {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	g.Set(value)
}

// GetMetric implements MetricSource.
func (r *Registry) GetMetric(name string) (float64, bool) {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}

	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return r.defaults[name], false
	}
	return m.GetGauge().GetValue(), true
}

// PrometheusRegistry exposes the underlying prometheus registry for an HTTP
// /metrics handler to serve.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// sanitizeMetricName makes a dotted/spaced metric name prometheus-legal
// (letters, digits, underscores).
func sanitizeMetricName(name string) string {
	out := make([]rune, 0, len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return "telos_" + string(out)
}

// OSMetricSource reads live process memory usage via runtime.MemStats. No
// pack library exposes a simple in-process "current memory usage" reader
// (client_golang's process collector is built for HTTP scraping, not direct
// value reads), so this one provider falls back to the standard library.
type OSMetricSource struct{}

// GetMetric implements MetricSource. The only supported name is
// "memory_usage", reporting heap bytes currently allocated.
func (OSMetricSource) GetMetric(name string) (float64, bool) {
	if name != "memory_usage" {
		return 0, false
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc), true
}
