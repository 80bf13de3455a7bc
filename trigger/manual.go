package trigger

import "context"

// ManualTrigger polls its source only when explicitly told to via
// TriggerNow; it never fires on its own. Pending triggers coalesce: a
// second TriggerNow before the first has been consumed by Next is a
// no-op (spec.md §4.D).
type ManualTrigger struct {
	ch chan struct{}
}

// NewManualTrigger returns a trigger with no pending tick.
func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{ch: make(chan struct{}, 1)}
}

// Next blocks until TriggerNow is called or ctx is canceled.
func (t *ManualTrigger) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ch:
		return nil
	}
}

// TriggerNow schedules an immediate poll. Manual triggers always allow
// this; AllowManualTrigger gating is only meaningful for interval
// triggers, which otherwise never accept out-of-band polls.
func (t *ManualTrigger) TriggerNow() error {
	select {
	case t.ch <- struct{}{}:
	default:
	}
	return nil
}

// Close is a no-op; ManualTrigger holds no external resources.
func (t *ManualTrigger) Close() error { return nil }
