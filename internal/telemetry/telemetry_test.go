package telemetry

import "testing"

func TestRegistry_GetMetricReturnsDeclaredValue(t *testing.T) {
	r := NewRegistry()
	r.Declare("p99_hybrid_query_latency", "p99 latency in ms", 50)

	v, ok := r.GetMetric("p99_hybrid_query_latency")
	if !ok {
		t.Fatal("expected declared metric to be readable")
	}
	if v != 50 {
		t.Errorf("expected default value 50, got %f", v)
	}
}

func TestRegistry_SetUpdatesReadBackValue(t *testing.T) {
	r := NewRegistry()
	r.Declare("replication_lag", "", 0)
	r.Set("replication_lag", 12.5)

	v, ok := r.GetMetric("replication_lag")
	if !ok || v != 12.5 {
		t.Errorf("expected 12.5, got %f (ok=%v)", v, ok)
	}
}

func TestRegistry_GetMetricMissReturnsFalse(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.GetMetric("unknown"); ok {
		t.Error("expected undeclared metric to miss")
	}
}

func TestRegistry_DeclareTwiceKeepsFirstValue(t *testing.T) {
	r := NewRegistry()
	r.Declare("schema_adherence_rate", "", 0.9)
	r.Declare("schema_adherence_rate", "", 0.1)

	v, _ := r.GetMetric("schema_adherence_rate")
	if v != 0.9 {
		t.Errorf("expected first declaration's default 0.9 to win, got %f", v)
	}
}

func TestOSMetricSource_ReportsMemoryUsage(t *testing.T) {
	var src OSMetricSource
	v, ok := src.GetMetric("memory_usage")
	if !ok {
		t.Fatal("expected memory_usage to be available")
	}
	if v <= 0 {
		t.Errorf("expected positive allocated heap bytes, got %f", v)
	}
}

func TestOSMetricSource_UnknownNameMisses(t *testing.T) {
	var src OSMetricSource
	if _, ok := src.GetMetric("cpu_usage"); ok {
		t.Error("expected unsupported metric name to miss")
	}
}
