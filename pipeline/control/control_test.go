package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/resource"
	"github.com/alumet-go/alumet/trigger"
	"github.com/alumet-go/alumet/units"
)

type countingSource struct {
	metricID metric.RawMetricID
	mu       sync.Mutex
	polls    int
}

func (s *countingSource) Poll(acc measurement.Accumulator, ts time.Time) error {
	s.mu.Lock()
	s.polls++
	n := s.polls
	s.mu.Unlock()
	acc.Push(measurement.NewPoint(ts, s.metricID, resource.NewLocalMachine(), resource.NewLocalMachine(), measurement.U64(uint64(n))))
	return nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

type sinkOutput struct {
	mu   sync.Mutex
	n    int
	done chan struct{}
}

func (o *sinkOutput) Write(buf measurement.View, ctx runtime.OutputContext) error {
	o.mu.Lock()
	o.n++
	o.mu.Unlock()
	select {
	case o.done <- struct{}{}:
	default:
	}
	return nil
}

func buildTestRuntime(t *testing.T, src *countingSource, out *sinkOutput) (*runtime.Runtime, trigger.Trigger) {
	t.Helper()
	reg := metric.NewRegistry()
	id, err := reg.Create(metric.Metric{Name: "m", ValueType: metric.U64, Unit: units.Unprefixed(units.Watt)}, metric.Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src.metricID = id

	srcName := naming.ElementName{Plugin: "test", Element: "source-s1"}
	outName := naming.ElementName{Plugin: "test", Element: "output-o1"}
	manual := trigger.NewManualTrigger()

	rt, err := runtime.Build(reg,
		[]runtime.SourceEntry{{Name: srcName, Source: src, Spec: trigger.Spec{FlushThreshold: 1}, Trigger: manual}},
		nil,
		[]runtime.OutputEntry{{Name: outName, Output: out}},
	)
	if err != nil {
		t.Fatalf("unexpected error building runtime: %v", err)
	}
	return rt, manual
}

func TestSendWaitTriggersSourceNow(t *testing.T) {
	src := &countingSource{}
	out := &sinkOutput{done: make(chan struct{}, 8)}
	rt, _ := buildTestRuntime(t, src, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)

	h := Start(ctx, rt, nil, nil)
	defer h.Shutdown()

	req := Source(naming.MatchAll(naming.Source)).TriggerNow()
	if err := h.SendWait(req, time.Second); err != nil {
		t.Fatalf("unexpected error from SendWait: %v", err)
	}

	select {
	case <-out.done:
	case <-time.After(2 * time.Second):
		t.Fatal("output never received a write after trigger_now")
	}
}

func TestSendWaitPauseStopsPolling(t *testing.T) {
	src := &countingSource{}
	out := &sinkOutput{done: make(chan struct{}, 8)}
	rt, manual := buildTestRuntime(t, src, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)

	h := Start(ctx, rt, nil, nil)
	defer h.Shutdown()

	pause := Source(naming.MatchAll(naming.Source)).Pause()
	if err := h.SendWait(pause, time.Second); err != nil {
		t.Fatalf("unexpected error pausing: %v", err)
	}

	if err := manual.TriggerNow(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-out.done:
		t.Fatal("output received a write while the source was paused")
	case <-time.After(200 * time.Millisecond):
	}

	if src.count() != 0 {
		t.Fatalf("expected zero polls while paused, got %d", src.count())
	}
}

func TestOutputDisablePausesDelivery(t *testing.T) {
	src := &countingSource{}
	out := &sinkOutput{done: make(chan struct{}, 8)}
	rt, manual := buildTestRuntime(t, src, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)

	h := Start(ctx, rt, nil, nil)
	defer h.Shutdown()

	if err := h.SendWait(Output(naming.MatchAll(naming.Output)).Disable(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := manual.TriggerNow(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-out.done:
		t.Fatal("output received a write while disabled")
	case <-time.After(200 * time.Millisecond):
	}

	if err := h.SendWait(Output(naming.MatchAll(naming.Output)).Enable(), time.Second); err != nil {
		t.Fatalf("unexpected error resuming output: %v", err)
	}
}

func TestSendWaitFailsWhenQueueIsFull(t *testing.T) {
	h := &Handle{queue: make(chan envelope), done: make(chan struct{})}
	req := Source(naming.MatchAll(naming.Source)).TriggerNow()
	err := h.SendWait(req, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected an error when the request queue has no reader")
	}
}

func TestDrainStopsRuntime(t *testing.T) {
	src := &countingSource{}
	out := &sinkOutput{done: make(chan struct{}, 8)}
	rt, _ := buildTestRuntime(t, src, out)

	ctx := context.Background()
	rt.Start(ctx)

	if err := Drain(rt, time.Second); err != nil {
		t.Fatalf("unexpected error draining: %v", err)
	}
}
