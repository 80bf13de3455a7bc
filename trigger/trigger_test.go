package trigger

import (
	"context"
	"testing"
	"time"
)

func TestSpecClampRespectsMaxUpdateInterval(t *testing.T) {
	s := Spec{Interval: 10 * time.Second}
	clamped := s.Clamp(2 * time.Second)
	if clamped.Interval != 2*time.Second {
		t.Fatalf("expected interval clamped to 2s, got %v", clamped.Interval)
	}

	unclamped := Spec{Interval: time.Second}.Clamp(2 * time.Second)
	if unclamped.Interval != time.Second {
		t.Fatalf("interval below the ceiling should be untouched, got %v", unclamped.Interval)
	}

	disabled := Spec{Interval: 10 * time.Second}.Clamp(0)
	if disabled.Interval != 10*time.Second {
		t.Fatalf("zero max_update_interval should disable clamping, got %v", disabled.Interval)
	}
}

func TestManualTriggerFiresOnlyWhenTriggered(t *testing.T) {
	tr := NewManualTrigger()
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tr.Next(ctx); err == nil {
		t.Fatal("expected Next to time out with no trigger pending")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := tr.TriggerNow(); err != nil {
		t.Fatalf("unexpected error from TriggerNow: %v", err)
	}
	if err := tr.Next(ctx2); err != nil {
		t.Fatalf("Next should resolve immediately after TriggerNow: %v", err)
	}
}

func TestManualTriggerCoalescesRepeatedTriggers(t *testing.T) {
	tr := NewManualTrigger()
	defer tr.Close()

	_ = tr.TriggerNow()
	_ = tr.TriggerNow()
	_ = tr.TriggerNow()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Next(ctx); err != nil {
		t.Fatalf("expected one pending tick to resolve Next: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if err := tr.Next(ctx2); err == nil {
		t.Fatal("coalesced triggers should only unblock Next once")
	}
}

func TestIntervalTriggerFiresPeriodically(t *testing.T) {
	it, err := NewIntervalTrigger(Spec{Interval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error constructing interval trigger: %v", err)
	}
	defer it.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := it.Next(ctx); err != nil {
		t.Fatalf("expected the interval trigger to fire: %v", err)
	}
}

func TestIntervalTriggerRejectsManualWhenNotAllowed(t *testing.T) {
	it, err := NewIntervalTrigger(Spec{Interval: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer it.Close()

	if err := it.TriggerNow(); err != ErrManualNotAllowed {
		t.Fatalf("expected ErrManualNotAllowed, got %v", err)
	}
}

func TestIntervalTriggerManualWhenAllowed(t *testing.T) {
	it, err := NewIntervalTrigger(Spec{Interval: time.Hour, AllowManualTrigger: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer it.Close()

	if err := it.TriggerNow(); err != nil {
		t.Fatalf("unexpected error from TriggerNow: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := it.Next(ctx); err != nil {
		t.Fatalf("expected manual trigger to unblock Next despite a 1h interval: %v", err)
	}
}

func TestNewIntervalTriggerRejectsNonPositiveInterval(t *testing.T) {
	if _, err := NewIntervalTrigger(Spec{Interval: 0}); err != ErrIntervalTooShort {
		t.Fatalf("expected ErrIntervalTooShort, got %v", err)
	}
}
