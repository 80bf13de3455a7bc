package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alumet-go/alumet/internal/alog"
	"github.com/alumet-go/alumet/internal/selfmetrics"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/pipeline/runtime"
)

// ControlErrorKind classifies why a control request could not be
// completed.
type ControlErrorKind uint8

const (
	// ErrKindChannelFull means the request queue was saturated.
	ErrKindChannelFull ControlErrorKind = iota
	// ErrKindShutdown means the pipeline has already shut down.
	ErrKindShutdown
	// ErrKindPipeline means the request itself failed while applying
	// (e.g. trigger_now on a source that does not allow manual
	// triggering).
	ErrKindPipeline
)

// ControlError reports why Send/SendWait failed.
type ControlError struct {
	Kind  ControlErrorKind
	Cause error
}

func (e *ControlError) Error() string {
	switch e.Kind {
	case ErrKindChannelFull:
		return "control: request queue is full"
	case ErrKindShutdown:
		return "control: pipeline is shutting down"
	default:
		return fmt.Sprintf("control: request failed: %v", e.Cause)
	}
}

func (e *ControlError) Unwrap() error { return e.Cause }

// ErrManualTriggerNotAllowed is returned when trigger_now targets a
// source that did not opt into manual triggering (spec.md §9 open
// question resolution, see DESIGN.md).
var ErrManualTriggerNotAllowed = fmt.Errorf("control: source does not allow manual triggering")

const requestQueueSize = 256

type envelope struct {
	req        Request
	response   chan error
	enqueuedAt time.Time
}

// handlerState is the control loop's private, single-goroutine-owned
// state: the runtime it operates on plus per-source rate limiters for
// trigger_now (spec.md §4.F).
type handlerState struct {
	runtime *runtime.Runtime

	limiterMu sync.Mutex
	limiters  map[naming.ElementName]*rate.Limiter

	mirror  *EventMirror
	metrics *selfmetrics.Collector
}

func (st *handlerState) triggerNowLimited(name naming.ElementName) error {
	st.limiterMu.Lock()
	lim, ok := st.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Every(triggerRateLimitWindow), 1)
		st.limiters[name] = lim
	}
	st.limiterMu.Unlock()

	if !lim.Allow() {
		return nil // dropped, not an error: at-least-one-poll is still guaranteed by the trigger's own cadence
	}
	return st.runtime.TriggerSourceNow(name)
}

// Handle lets plugins and external callers submit control requests to a
// running pipeline. It is safe for concurrent use; requests are
// serialized onto a single goroutine that owns the runtime
// (original_source/alumet/src/pipeline/control/mod.rs's PipelineControl
// task, adapted to a single owning goroutine plus channel).
type Handle struct {
	queue  chan envelope
	done   chan struct{}
	cancel context.CancelFunc
}

// Start launches the control loop over rt and returns a Handle to it. The
// loop exits when ctx is canceled; mirror may be nil to disable the
// optional NATS event mirror, and metrics may be nil to disable
// control-request latency reporting.
func Start(ctx context.Context, rt *runtime.Runtime, mirror *EventMirror, metrics *selfmetrics.Collector) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		queue:  make(chan envelope, requestQueueSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	st := &handlerState{runtime: rt, limiters: make(map[naming.ElementName]*rate.Limiter), mirror: mirror, metrics: metrics}
	go h.run(loopCtx, st)
	return h
}

func (h *Handle) run(ctx context.Context, st *handlerState) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.queue:
			err := env.req.apply(st)
			if st.metrics != nil {
				st.metrics.ControlRequestLatency.WithLabelValues(env.req.kind()).Observe(time.Since(env.enqueuedAt).Seconds())
			}
			if st.mirror != nil {
				st.mirror.publishRequestApplied(err)
			}
			if env.response != nil {
				env.response <- err
			}
		}
	}
}

// Send enqueues req and returns once it has been accepted onto the queue,
// without waiting for it to be applied ("fire-and-forget",
// spec.md §4.H: "send(request)").
func (h *Handle) Send(req Request) error {
	select {
	case h.queue <- envelope{req: req, enqueuedAt: time.Now()}:
		return nil
	case <-h.done:
		return &ControlError{Kind: ErrKindShutdown}
	default:
		return &ControlError{Kind: ErrKindChannelFull}
	}
}

// SendWait enqueues req and blocks until it has been applied or timeout
// elapses (spec.md §4.H: "send_wait(request, timeout)").
func (h *Handle) SendWait(req Request, timeout time.Duration) error {
	response := make(chan error, 1)
	select {
	case h.queue <- envelope{req: req, response: response, enqueuedAt: time.Now()}:
	case <-h.done:
		return &ControlError{Kind: ErrKindShutdown}
	default:
		return &ControlError{Kind: ErrKindChannelFull}
	}

	select {
	case err := <-response:
		if err != nil {
			return &ControlError{Kind: ErrKindPipeline, Cause: err}
		}
		return nil
	case <-time.After(timeout):
		return &ControlError{Kind: ErrKindPipeline, Cause: fmt.Errorf("timed out after %s", timeout)}
	}
}

// Shutdown stops the control loop. The caller is responsible for draining
// the runtime itself (see Drain), matching spec.md §4.F's staged
// shutdown: the control loop leaving its select loop is step 1 of 7.
func (h *Handle) Shutdown() {
	h.cancel()
	<-h.done
}

// CorrelationID returns a fresh identifier suitable for tagging a
// request/response pair across a relay or event-mirror boundary
// (spec.md §4.F mentions typed responses; google/uuid grounds the
// correlation id domain-stack addition).
func CorrelationID() string { return uuid.NewString() }

// Drain performs the staged shutdown sequence described in spec.md §4.F:
// stop every source and wait for them, then close the transform stage's
// input channel and wait for it to drain, then close the fan-out channel
// and wait for every output to drain. Each stage is bounded by timeout
// (measured from Drain's own start, not restarted per stage); if any
// stage does not finish in time, Drain falls back to an immediate,
// unordered runtime.Shutdown so the caller is never left waiting forever
// for a wedged task.
func Drain(rt *runtime.Runtime, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"sources", rt.StopSources},
		{"transform stage", rt.CloseTransformInput},
		{"fan-out", rt.CloseFanout},
		{"outputs", rt.StopOutputs},
	}
	for _, stage := range stages {
		if err := stage.run(ctx); err != nil {
			alog.Warnf("pipeline shutdown timed out draining the %s; abandoning remaining tasks", stage.name)
			rt.Shutdown()
			_ = rt.Wait()
			return fmt.Errorf("control: shutdown timed out during %s drain: %w", stage.name, err)
		}
	}

	if err := rt.Wait(); err != nil {
		alog.Warnf("pipeline exited with an error during shutdown: %v", err)
		return err
	}
	alog.Info("pipeline shutdown complete")
	return nil
}
