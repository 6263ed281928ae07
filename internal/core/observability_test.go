package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "fill_rectangle", true, 5*time.Millisecond)
	rec.Observe(ctx, "fill_rectangle", true, 7*time.Millisecond)
	rec.Observe(ctx, "fill_rectangle", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["fill_rectangle"]; got != 13 {
		t.Fatalf("durations = %g ms, want 13", got)
	}
	if got := snap.Results["fill_rectangle"]["success"]; got != 2 {
		t.Fatalf("success count = %d, want 2", got)
	}
	if got := snap.Results["fill_rectangle"]["error"]; got != 1 {
		t.Fatalf("error count = %d, want 1", got)
	}
}

func TestExpvarMetricsRecorderUniqueAutoNames(t *testing.T) {
	a := NewExpvarMetricsRecorder("")
	b := NewExpvarMetricsRecorder("")
	if a.Name() == b.Name() {
		t.Fatalf("generated names collide: %q", a.Name())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(registry)

	rec.Observe(context.Background(), "undo", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "undo", false, time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{"zonecore_engine_operations_total", "zonecore_engine_operation_duration_seconds"} {
		if !found[name] {
			t.Fatalf("metric %s not registered; got %v", name, found)
		}
	}
}
