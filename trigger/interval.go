package trigger

import (
	"context"
	"sync"

	"github.com/go-co-op/gocron/v2"
)

// IntervalTrigger polls its source on a fixed period, scheduled by a
// dedicated gocron job, grounded on the periodic-job idiom used
// throughout the pipeline's task manager for recurring background work.
// Next blocks until the job fires, is manually triggered, or ctx is
// canceled.
type IntervalTrigger struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	ticks     chan struct{}

	allowManual bool
	manualCh    chan struct{}

	closeOnce sync.Once
}

// NewIntervalTrigger starts a gocron job that signals ticks every
// spec.Interval. spec.Interval must be positive.
func NewIntervalTrigger(spec Spec) (*IntervalTrigger, error) {
	if spec.Interval <= 0 {
		return nil, ErrIntervalTooShort
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	t := &IntervalTrigger{
		scheduler:   scheduler,
		ticks:       make(chan struct{}, 1),
		allowManual: spec.AllowManualTrigger,
		manualCh:    make(chan struct{}, 1),
	}

	job, err := scheduler.NewJob(
		gocron.DurationJob(spec.Interval),
		gocron.NewTask(t.signalTick),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}
	t.job = job

	scheduler.Start()
	return t, nil
}

func (t *IntervalTrigger) signalTick() {
	select {
	case t.ticks <- struct{}{}:
	default:
		// a tick is already pending; coalesce, the source task only ever
		// needs to know "at least one deadline has passed".
	}
}

// Next blocks until the interval elapses, a manual trigger is pending, or
// ctx is canceled.
func (t *IntervalTrigger) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ticks:
		return nil
	case <-t.manualCh:
		return nil
	}
}

// TriggerNow requests an out-of-band poll. It is a no-op, not an error, if
// one is already pending: the spec only promises that at least one extra
// poll happens, not exactly one.
func (t *IntervalTrigger) TriggerNow() error {
	if !t.allowManual {
		return ErrManualNotAllowed
	}
	select {
	case t.manualCh <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the underlying gocron scheduler.
func (t *IntervalTrigger) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.scheduler.Shutdown()
	})
	return err
}
