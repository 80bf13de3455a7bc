package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/alumet-go/alumet/internal/alog"
	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/trigger"
)

// sourceConfig is the mutable, control-plane-writable state of a running
// source: its trigger and whether it is currently paused. Every managed
// source owns one config cell; the control plane writes to it and the
// source task reads it on the next trigger tick (spec.md §9:
// "per-source reconfiguration").
type sourceConfig struct {
	mu      sync.Mutex
	trigger trigger.Trigger
	paused  bool
	changed chan struct{}
}

func newSourceConfig(t trigger.Trigger) *sourceConfig {
	return &sourceConfig{trigger: t, changed: make(chan struct{}, 1)}
}

func (c *sourceConfig) setTrigger(t trigger.Trigger) {
	c.mu.Lock()
	old := c.trigger
	c.trigger = t
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	c.notify()
}

func (c *sourceConfig) setPaused(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
	c.notify()
}

func (c *sourceConfig) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *sourceConfig) snapshot() (trigger.Trigger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger, c.paused
}

// sourceTask runs one source's poll loop. isBlocking marks a source whose
// Poll call may block for a long time (e.g. on I/O); such a source's Poll
// calls are gated by blockingSem, a fixed-size semaphore shared by every
// blocking source, so an unbounded number of simultaneously-blocked Polls
// cannot pile up OS threads behind Go's scheduler (spec.md §4.D: "blocking
// sources are policy-distinct at registration"; §4.H: "blocking pool
// size", sized from config.Keys.BlockingWorkers). Non-blocking sources
// ignore blockingSem entirely and always poll immediately.
type sourceTask struct {
	name           naming.ElementName
	source         Source
	config         *sourceConfig
	flushThreshold int
	isBlocking     bool
	blockingSem    chan struct{}

	out chan<- *measurement.Buffer
}

func newSourceTask(name naming.ElementName, source Source, spec trigger.Spec, t trigger.Trigger, isBlocking bool, blockingSem chan struct{}, out chan<- *measurement.Buffer) *sourceTask {
	return &sourceTask{
		name:           name,
		source:         source,
		config:         newSourceConfig(t),
		flushThreshold: spec.FlushThreshold,
		isBlocking:     isBlocking,
		blockingSem:    blockingSem,
		out:            out,
	}
}

// run loops: await trigger, poll, flush on threshold, observe config
// changes; it returns when ctx is canceled or the source reports a
// terminal error (spec.md §4.D, §4.E).
func (t *sourceTask) run(ctx context.Context) error {
	logger := alog.WithElement(t.name)
	buf := measurement.NewBuffer(t.flushThreshold)
	flushEvery := t.flushThreshold
	if flushEvery <= 0 {
		flushEvery = 1
	}

	for {
		trg, _ := t.config.snapshot()
		if trg == nil {
			return nil
		}
		if err := trg.Next(ctx); err != nil {
			return err
		}
		select {
		case <-t.config.changed:
		default:
		}
		if _, paused := t.config.snapshot(); paused {
			continue
		}

		if t.isBlocking && t.blockingSem != nil {
			select {
			case t.blockingSem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		now := time.Now()
		err := t.source.Poll(buf.AsAccumulator(), now)
		if t.isBlocking && t.blockingSem != nil {
			<-t.blockingSem
		}
		if err != nil {
			pe, ok := err.(*PollError)
			if !ok {
				return err
			}
			switch pe.Kind {
			case PollNormalStop:
				logger.Infof("stopped (expected): %v", pe.Cause)
				return nil
			case PollCanRetry:
				logger.Warnf("poll failed, will retry: %v", pe.Cause)
				continue
			default:
				return pe
			}
		}

		if buf.Len() >= flushEvery {
			flushed := buf
			buf = measurement.NewBuffer(t.flushThreshold)
			select {
			case t.out <- flushed:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
