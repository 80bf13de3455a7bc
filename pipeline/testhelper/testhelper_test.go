package testhelper

import (
	"testing"
	"time"

	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/resource"
	"github.com/alumet-go/alumet/units"
)

type constSource struct{ id metric.RawMetricID }

func (s constSource) Poll(acc measurement.Accumulator, ts time.Time) error {
	acc.Push(measurement.NewPoint(ts, s.id, resource.NewLocalMachine(), resource.NewLocalMachine(), measurement.U64(42)))
	return nil
}

func TestCheckedSourceRunsCheckOnce(t *testing.T) {
	reg := metric.NewRegistry()
	id, err := reg.Create(metric.Metric{Name: "probe", ValueType: metric.U64, Unit: units.Unprefixed(units.Custom("c", "c"))}, metric.Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	preRan := false
	cs := NewCheckedSource(t, constSource{id: id}, func() { preRan = true })

	checkRan := make(chan struct{}, 1)
	go func() {
		ok := cs.ExpectNextPoll(func(t *testing.T, buf *measurement.Buffer) {
			if len(buf.Points()) != 1 {
				t.Errorf("expected 1 point, got %d", len(buf.Points()))
			}
		}, time.Second)
		if !ok {
			t.Error("expected the check to run before timeout")
		}
		checkRan <- struct{}{}
	}()

	// give ExpectNextPoll a moment to arm before Poll runs.
	time.Sleep(10 * time.Millisecond)
	buf := measurement.NewBuffer(4)
	if err := cs.Poll(buf.AsAccumulator(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-checkRan:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the check to run")
	}
	if !preRan {
		t.Fatal("expected the pre-condition to run before Poll")
	}
}

func TestStartupExpectationsAssertSatisfiedBy(t *testing.T) {
	reg := metric.NewRegistry()
	if _, err := reg.Create(metric.Metric{Name: "probe", ValueType: metric.U64, Unit: units.Unprefixed(units.Custom("c", "c"))}, metric.Strict); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rt, err := runtime.Build(reg, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp := StartupExpectations{
		Metrics: []ExpectedMetric{{Name: "probe", ValueType: metric.U64}},
	}
	exp.AssertSatisfiedBy(t, reg, rt)
}
