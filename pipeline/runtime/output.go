package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alumet-go/alumet/internal/alog"
	"github.com/alumet-go/alumet/internal/selfmetrics"
	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
)

// pausePollInterval bounds how quickly a paused output notices it has
// been resumed or stopped.
const pausePollInterval = 50 * time.Millisecond

// OutputState is the control state of a managed output task (spec.md
// §4.F; original_source/core/alumet/src/pipeline/control/request/output.rs).
type OutputState uint8

const (
	// OutputRun: write every incoming buffer.
	OutputRun OutputState = iota
	// OutputRunDiscard: running, but silently drop incoming buffers
	// instead of writing them (used to resume after a pause without
	// replaying backlog).
	OutputRunDiscard
	// OutputPause: stop consuming; buffers pile up in the output's own
	// backlog until it is resumed or the backlog is exceeded.
	OutputPause
	// OutputStopNow: stop immediately, discarding anything not yet
	// written.
	OutputStopNow
	// OutputStopFinish: keep writing queued buffers and stop once a write
	// leaves the backlog empty; if the backlog is already empty, the task
	// stops after the next buffer it writes or when its backlog is closed.
	OutputStopFinish
)

// outputBacklog bounds how many buffers may queue for one output before
// new ones are dropped, the per-output analogue of the pipeline-wide
// mpsc buffer size (spec.md §9 channel sizing notes).
const outputBacklog = 64

// outputTask runs one output's write loop against its own fan-out
// channel, so a slow or paused output cannot block its siblings.
type outputTask struct {
	name    naming.ElementName
	output  Output
	metrics *metric.Registry

	in    chan *measurement.Buffer
	state atomic.Uint32

	selfMetrics *selfmetrics.Collector
}

func newOutputTask(name naming.ElementName, output Output, metrics *metric.Registry) *outputTask {
	t := &outputTask{name: name, output: output, metrics: metrics, in: make(chan *measurement.Buffer, outputBacklog)}
	t.state.Store(uint32(OutputRun))
	return t
}

// setSelfMetrics attaches the optional self-observability collector; a nil
// collector (the default) disables all self-metric reporting for this
// output.
func (t *outputTask) setSelfMetrics(c *selfmetrics.Collector) { t.selfMetrics = c }

func (t *outputTask) setState(s OutputState) {
	t.state.Store(uint32(s))
	if s == OutputRunDiscard {
		t.drain()
	}
}

func (t *outputTask) drain() {
	for {
		select {
		case <-t.in:
		default:
			return
		}
	}
}

// closeInput closes the output's own backlog channel, letting run drain
// whatever is already queued and exit once it observes the close. Call
// only once the fan-out loop has exited, so nothing can still call offer
// concurrently (spec.md §4.F staged shutdown, final stage).
func (t *outputTask) closeInput() { close(t.in) }

// offer delivers buf to the output's backlog, dropping it if the backlog
// is full (a paused or wedged output must never stall the fan-out).
func (t *outputTask) offer(buf *measurement.Buffer) {
	select {
	case t.in <- buf:
	default:
		alog.WithElement(t.name).Warnf("backlog full, dropping a buffer of %d points", buf.Len())
		if t.selfMetrics != nil {
			t.selfMetrics.DroppedBuffers.WithLabelValues(t.name.String()).Inc()
		}
	}
	if t.selfMetrics != nil {
		t.selfMetrics.OutputBacklogDepth.WithLabelValues(t.name.String()).Set(float64(len(t.in)))
	}
}

// run writes every buffer not dropped by state, until ctx is canceled,
// the task is told to StopNow, or (after StopFinish) its backlog drains.
// While paused, buffers are left queued in the backlog rather than
// received, so a resumed output catches up on exactly what it missed (up
// to the backlog size); a buffer already received when the pause takes
// effect is held, unwritten, until the output resumes or stops.
func (t *outputTask) run(ctx context.Context) error {
	ctxInfo := OutputContext{Metrics: t.metrics}
	logger := alog.WithElement(t.name)
	for {
		state := OutputState(t.state.Load())
		if state == OutputStopNow {
			return nil
		}
		if state == OutputPause {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.pausePoll():
				continue
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-t.in:
			if !ok {
				return nil
			}
			state = OutputState(t.state.Load())
			for state == OutputPause {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.pausePoll():
				}
				state = OutputState(t.state.Load())
			}
			if state == OutputStopNow {
				return nil
			}
			if state == OutputRunDiscard {
				continue
			}
			if err := t.write(buf, ctxInfo, logger); err != nil {
				return err
			}
			if state == OutputStopFinish && len(t.in) == 0 {
				return nil
			}
		}
	}
}

// pausePoll returns a channel that fires shortly, used only to re-check
// the output's state while paused without spinning the CPU.
func (t *outputTask) pausePoll() <-chan time.Time {
	return time.After(pausePollInterval)
}

func (t *outputTask) write(buf *measurement.Buffer, ctxInfo OutputContext, logger alog.Element) error {
	if err := t.output.Write(buf.AsView(), ctxInfo); err != nil {
		we, ok := err.(*WriteError)
		if !ok {
			return err
		}
		if we.Kind == WriteCanRetry {
			logger.Warnf("write failed (will retry): %v", we.Cause)
			return nil
		}
		return we
	}
	return nil
}
