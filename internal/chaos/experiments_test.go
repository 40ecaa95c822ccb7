package chaos

import (
	"testing"

	"github.com/telos-systems/telos-core/internal/chaos/target"
)

func TestRegisterCanonicalExperiments_RegistersAllFive(t *testing.T) {
	c := NewConductor(DefaultConfig())
	deps := CanonicalDeps{
		L2Tier:                &target.FuncTarget{},
		MessageQueue:          &target.FuncTarget{},
		Transducer:            &target.FuncTarget{},
		ControllerArbitration: &target.FuncTarget{},
		MemoryFabric:          &target.FuncTarget{},
	}
	RegisterCanonicalExperiments(c, deps)

	want := []string{
		"latency-injection-l2",
		"poison-message-handling",
		"schema-violation-transducer",
		"operator-tie-impasse",
		"memory-pressure",
	}
	for _, id := range want {
		if _, ok := c.experiments[id]; !ok {
			t.Errorf("expected experiment %q to be registered", id)
		}
	}
}

func TestRegisterCanonicalExperiments_LatencyInjectionMatchesCEP001(t *testing.T) {
	c := NewConductor(DefaultConfig())
	RegisterCanonicalExperiments(c, CanonicalDeps{
		L2Tier:                &target.FuncTarget{},
		MessageQueue:          &target.FuncTarget{},
		Transducer:            &target.FuncTarget{},
		ControllerArbitration: &target.FuncTarget{},
		MemoryFabric:          &target.FuncTarget{},
	})

	exp := c.experiments["latency-injection-l2"]
	if exp == nil {
		t.Fatal("expected latency-injection-l2 to be registered")
	}
	if exp.SuccessThreshold != 1.1 {
		t.Errorf("expected threshold 1.1, got %f", exp.SuccessThreshold)
	}
	if exp.Duration.Seconds() != 60 {
		t.Errorf("expected 60s duration, got %s", exp.Duration)
	}
	if exp.RatioMetric {
		t.Error("expected a latency-like metric, not a ratio metric")
	}
	if exp.Params["latency_ms"] != 200 {
		t.Errorf("expected injected latency of 200ms, got %v", exp.Params["latency_ms"])
	}
}
