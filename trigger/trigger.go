// Package trigger decides when a source must be polled: on a fixed
// interval, on demand ("trigger now"), or (in the future) some other
// event. It also enforces the max_update_interval ceiling that bounds
// every source's configured interval (spec.md §4.D).
package trigger

import (
	"context"
	"errors"
	"time"
)

// ErrIntervalTooShort is returned by NewIntervalTrigger when the requested
// poll interval is zero or negative.
var ErrIntervalTooShort = errors.New("trigger: poll interval must be positive")

// Spec describes how a source should be triggered, before it is wired
// into a running Trigger. It is the value a plugin supplies at
// registration time (spec.md §4.D: "TriggerSpec").
type Spec struct {
	// Interval is the nominal poll period for an interval trigger. Zero
	// with AllowManualTrigger set means the source is manual-only; zero
	// without it is rejected by New.
	Interval time.Duration
	// FlushThreshold is how many points accumulate locally before the
	// source's buffer is handed to the transform stage; zero means flush
	// on every poll.
	FlushThreshold int
	// AllowManualTrigger opts this source into trigger_now control
	// requests (spec.md §4.D).
	AllowManualTrigger bool
}

// Clamp returns a copy of s with Interval no larger than maxUpdateInterval,
// implementing the pipeline-wide ceiling every source's interval must
// respect (spec.md §4.D). maxUpdateInterval of zero disables the clamp.
func (s Spec) Clamp(maxUpdateInterval time.Duration) Spec {
	if maxUpdateInterval > 0 && s.Interval > maxUpdateInterval {
		s.Interval = maxUpdateInterval
	}
	return s
}

// New builds the Trigger a Spec describes: an interval trigger when
// Interval is positive, a manual-only trigger when AllowManualTrigger is
// set instead, or an error if spec names neither (spec.md §4.D). It is
// the single place that turns a registration-time Spec into a running
// Trigger, used both when a pipeline is first built and when a Creation
// control request adds a source to one already running (spec.md §4.F).
func New(spec Spec) (Trigger, error) {
	if spec.Interval > 0 {
		return NewIntervalTrigger(spec)
	}
	if spec.AllowManualTrigger {
		return NewManualTrigger(), nil
	}
	return nil, errors.New("trigger: spec has neither a positive interval nor manual triggering enabled")
}

// Trigger produces poll deadlines for a single source's task. Next blocks
// until either the next deadline is reached or ctx is canceled, in which
// case it returns ctx.Err().
type Trigger interface {
	// Next blocks until the source should be polled again.
	Next(ctx context.Context) error
	// TriggerNow requests an out-of-band poll as soon as possible. It
	// returns ErrManualNotAllowed if this trigger does not support manual
	// triggering.
	TriggerNow() error
	// Close releases any resources (e.g. a scheduled job) held by the
	// trigger. It does not cancel a Next call in progress.
	Close() error
}

// ErrManualNotAllowed is returned by TriggerNow when the trigger's source
// did not opt into manual triggering (spec.md §4.D).
var ErrManualNotAllowed = errors.New("trigger: source does not allow manual triggers")
