package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Alloy-Embedded/alloy-sub003/kernel"
)

func TestStatsExporter_Observe(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewStatsExporter("kernel", reg)
	if err != nil {
		t.Fatalf("NewStatsExporter failed: %v", err)
	}

	k := kernel.New(kernel.Config{})
	if _, err := k.AddTask(kernel.TaskConfig{Name: "blocked", Priority: 1}, func(task *kernel.Task) {
		_, _ = task.Wait(kernel.Forever)
	}); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if _, err := k.AddTask(kernel.TaskConfig{Name: "done", Priority: 2}, func(*kernel.Task) {}); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	pool, err := k.NewPool(8, 32)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	queue, err := k.NewQueue(4, 16)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	exporter.AddPool("blocks", pool)
	exporter.AddQueue("events", queue)

	if err := k.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for k.Step() {
	}
	if _, err := pool.Alloc(); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	exporter.Observe(k.Stats())

	if got := testutil.ToFloat64(exporter.taskStates.WithLabelValues("blocked")); got != 1 {
		t.Fatalf("blocked tasks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskStates.WithLabelValues("terminated")); got != 1 {
		t.Fatalf("terminated tasks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.contextSwitches); got < 2 {
		t.Fatalf("context switches = %v, want >= 2", got)
	}
	if got := testutil.ToFloat64(exporter.poolInUse.WithLabelValues("blocks")); got != 1 {
		t.Fatalf("pool in use = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.poolCapacity.WithLabelValues("blocks")); got != 8 {
		t.Fatalf("pool capacity = %v, want 8", got)
	}
	if got := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("events")); got != 0 {
		t.Fatalf("queue depth = %v, want 0", got)
	}
	if got := testutil.ToFloat64(exporter.queueCapacity.WithLabelValues("events")); got != 4 {
		t.Fatalf("queue capacity = %v, want 4", got)
	}
}

func TestStatsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewStatsExporter("kernel", reg)
	if err != nil {
		t.Fatalf("first NewStatsExporter failed: %v", err)
	}
	second, err := NewStatsExporter("kernel", reg)
	if err != nil {
		t.Fatalf("second NewStatsExporter failed: %v", err)
	}

	first.Observe(kernel.Stats{Now: 42})
	if got := testutil.ToFloat64(second.ticks); got != 42 {
		t.Fatalf("shared ticks gauge = %v, want 42", got)
	}
}
