package selfmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollectorRegistersEveryMetric(t *testing.T) {
	c := NewCollector()

	c.TransformQueueDepth.Set(3)
	c.OutputBacklogDepth.WithLabelValues("csv").Set(5)
	c.DroppedBuffers.WithLabelValues("csv").Inc()
	c.ControlRequestLatency.WithLabelValues("trigger_now").Observe(0.01)

	if got := testutil.ToFloat64(c.TransformQueueDepth); got != 3 {
		t.Fatalf("expected transform queue depth 3, got %v", got)
	}
	if got := testutil.ToFloat64(c.OutputBacklogDepth.WithLabelValues("csv")); got != 5 {
		t.Fatalf("expected backlog depth 5, got %v", got)
	}
	if got := testutil.ToFloat64(c.DroppedBuffers.WithLabelValues("csv")); got != 1 {
		t.Fatalf("expected 1 dropped buffer, got %v", got)
	}

	mfs, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering: %v", err)
	}
	if len(mfs) != 4 {
		t.Fatalf("expected all 4 metric families registered, got %d", len(mfs))
	}
}
