package target

import (
	"context"
	"errors"
	"testing"
)

func TestFuncTarget_NilFuncsAreNoOps(t *testing.T) {
	var f FuncTarget
	if err := f.Inject(context.Background(), "latency", nil); err != nil {
		t.Errorf("expected nil InjectFunc to no-op, got %v", err)
	}
	if err := f.Restore(context.Background()); err != nil {
		t.Errorf("expected nil RestoreFunc to no-op, got %v", err)
	}
}

func TestFuncTarget_DelegatesToProvidedFuncs(t *testing.T) {
	var injected, restored bool
	wantErr := errors.New("boom")

	f := FuncTarget{
		InjectFunc: func(ctx context.Context, hazard string, params map[string]any) error {
			injected = true
			if hazard != "latency" {
				t.Errorf("expected hazard 'latency', got %q", hazard)
			}
			return wantErr
		},
		RestoreFunc: func(ctx context.Context) error {
			restored = true
			return nil
		},
	}

	if err := f.Inject(context.Background(), "latency", map[string]any{"latency_ms": 200}); err != wantErr {
		t.Errorf("expected InjectFunc's error to propagate, got %v", err)
	}
	if !injected {
		t.Error("expected InjectFunc to be called")
	}

	if err := f.Restore(context.Background()); err != nil {
		t.Errorf("unexpected restore error: %v", err)
	}
	if !restored {
		t.Error("expected RestoreFunc to be called")
	}
}
