package metric

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alumet-go/alumet/units"
)

func def(name string, vt ValueType, base units.BaseUnit, desc string) Metric {
	return Metric{Name: name, Description: desc, ValueType: vt, Unit: units.Unprefixed(base)}
}

func TestCreateManyDifferentPolicy(t *testing.T) {
	reg := NewRegistry()
	results := reg.CreateMany([]Metric{
		def("m1", U64, units.Second, "x"),
		def("m1", F64, units.Second, "x"),
		def("m2", U64, units.Watt, ""),
	}, Different)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error for m1 first registration: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Fatalf("expected a conflict for the divergent m1 registration")
	}
	if results[2].Err != nil {
		t.Fatalf("unexpected error for m2: %v", results[2].Err)
	}
	if results[0].ID == results[2].ID {
		t.Fatalf("m1 and m2 should have distinct ids")
	}
}

func TestCreateManyDifferentPolicyIdempotentOnIdenticalDefinition(t *testing.T) {
	reg := NewRegistry()
	first := reg.CreateMany([]Metric{def("m1", U64, units.Second, "x")}, Different)
	second := reg.CreateMany([]Metric{def("m1", U64, units.Second, "x")}, Different)

	if first[0].Err != nil || second[0].Err != nil {
		t.Fatalf("identical definitions under Different should not conflict: %v / %v", first[0].Err, second[0].Err)
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("two successful creates of an identical definition should return the same id")
	}
}

func TestByIDResolvable(t *testing.T) {
	reg := NewRegistry()
	results := reg.CreateMany([]Metric{def("m1", U64, units.Second, "x")}, Strict)
	id := results[0].ID

	m, ok := reg.ByID(id)
	if !ok {
		t.Fatal("expected metric to be resolvable by id")
	}
	if m.Name != "m1" {
		t.Fatalf("unexpected metric: %+v", m)
	}
}

func TestStrictPolicyRejectsAnyNameClash(t *testing.T) {
	reg := NewRegistry()
	reg.CreateMany([]Metric{def("m1", U64, units.Second, "x")}, Strict)
	results := reg.CreateMany([]Metric{def("m1", U64, units.Second, "x")}, Strict)
	if results[0].Err == nil {
		t.Fatal("Strict policy should reject even an identical re-registration")
	}
}

func TestIncompatiblePolicyTolerantOfDescriptionDrift(t *testing.T) {
	reg := NewRegistry()
	reg.CreateMany([]Metric{def("m1", U64, units.Second, "first desc")}, Incompatible)
	results := reg.CreateMany([]Metric{def("m1", U64, units.Second, "second desc")}, Incompatible)
	if results[0].Err != nil {
		t.Fatalf("Incompatible policy should tolerate a description-only change: %v", results[0].Err)
	}
}

func TestLateMetricListener(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg.StartWorker(ctx)

	var mu sync.Mutex
	var received []Entry
	done := make(chan struct{}, 1)
	reg.Subscribe(func(id RawMetricID, m Metric) {
		mu.Lock()
		received = append(received, Entry{ID: id, Metric: m})
		mu.Unlock()
		done <- struct{}{}
	})

	results := reg.CreateMany([]Metric{def("late", U64, units.Byte, "")}, Strict)
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener was not notified in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Metric.Name != "late" {
		t.Fatalf("unexpected listener notifications: %+v", received)
	}
}

func TestIterReturnsAllRegistered(t *testing.T) {
	reg := NewRegistry()
	reg.CreateMany([]Metric{
		def("a", U64, units.Second, ""),
		def("b", F64, units.Watt, ""),
	}, Strict)

	entries := reg.Iter()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
