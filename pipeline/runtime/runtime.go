package runtime

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alumet-go/alumet/internal/selfmetrics"
	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/trigger"
)

// mpscBufferSize is the default capacity of the source-to-transform and
// transform-to-fanout channels (spec.md §9: "mpsc buffer 256").
const mpscBufferSize = 256

// SourceEntry pairs a built source with its name and trigger spec, the
// shape a pipeline builder assembles before starting the runtime.
type SourceEntry struct {
	Name       naming.ElementName
	Source     Source
	Spec       trigger.Spec
	Trigger    trigger.Trigger
	IsBlocking bool
}

// TransformEntry pairs a built transform with its name, in the order it
// must run.
type TransformEntry struct {
	Name      naming.ElementName
	Transform Transform
}

// OutputEntry pairs a built output with its name.
type OutputEntry struct {
	Name   naming.ElementName
	Output Output
}

// Runtime supervises the running source, transform and output tasks of
// one pipeline instance. It is built once per AgentStart/BuildAndStart
// and torn down on shutdown (spec.md §4.E, §5).
type Runtime struct {
	metrics *metric.Registry

	// mu guards sources/outputs/outputsOrder against the concurrent
	// inserts a dynamic Creation request performs (spec.md §4.F) racing
	// the lookups every other control-plane method and SourceNames/
	// OutputNames already perform.
	mu          sync.RWMutex
	sources     map[naming.ElementName]*sourceTask
	transforms  *transformStage
	outputs     map[naming.ElementName]*outputTask
	selfMetrics *selfmetrics.Collector

	// blockingSem bounds how many blocking sources' Poll calls may run
	// concurrently (spec.md §4.H blocking pool size). nil means
	// unbounded: SetBlockingWorkers was never called.
	blockingSem chan struct{}

	transformIn  chan *measurement.Buffer
	fanoutIn     chan *measurement.Buffer
	outputsOrder []naming.ElementName

	group  *errgroup.Group
	gctx   context.Context
	cancel context.CancelFunc

	// sourcesCtx/sourcesCancel let StopSources stop every source task
	// independently of the transform stage and outputs, which is what
	// makes the staged drain in spec.md §4.F possible: canceling it alone
	// cannot race the transform/output tasks' own select loops, since
	// their context stays alive until Shutdown.
	sourcesCtx    context.Context
	sourcesCancel context.CancelFunc

	// sourcesWG/transformWG/fanoutWG/outputsWG track each stage's
	// in-flight goroutines independently of the shared errgroup, so a
	// staged drain can wait for one stage at a time instead of all of
	// them at once.
	sourcesWG, transformWG, fanoutWG, outputsWG sync.WaitGroup
}

// Build constructs a Runtime from the given sources, transforms and
// outputs, wiring the source-to-transform and transform-to-fanout
// channels that connect them. It does
// not start any goroutines; call Start for that.
func Build(metrics *metric.Registry, sources []SourceEntry, transforms []TransformEntry, outputs []OutputEntry) (*Runtime, error) {
	transformIn := make(chan *measurement.Buffer, mpscBufferSize)
	fanoutIn := make(chan *measurement.Buffer, mpscBufferSize)

	srcTasks := make(map[naming.ElementName]*sourceTask, len(sources))
	for _, se := range sources {
		srcTasks[se.Name] = newSourceTask(se.Name, se.Source, se.Spec, se.Trigger, se.IsBlocking, nil, transformIn)
	}

	names := make([]naming.ElementName, len(transforms))
	tfs := make([]Transform, len(transforms))
	for i, te := range transforms {
		names[i] = te.Name
		tfs[i] = te.Transform
	}
	stage, err := newTransformStage(names, tfs, metrics, transformIn, fanoutIn)
	if err != nil {
		return nil, err
	}

	outTasks := make(map[naming.ElementName]*outputTask, len(outputs))
	order := make([]naming.ElementName, 0, len(outputs))
	for _, oe := range outputs {
		outTasks[oe.Name] = newOutputTask(oe.Name, oe.Output, metrics)
		order = append(order, oe.Name)
	}

	return &Runtime{
		metrics:      metrics,
		sources:      srcTasks,
		transforms:   stage,
		outputs:      outTasks,
		transformIn:  transformIn,
		fanoutIn:     fanoutIn,
		outputsOrder: order,
	}, nil
}

// Metrics returns the metric registry the runtime was built with, so the
// control plane can hand it to a Creation request's builder closures
// (spec.md §4.F).
func (r *Runtime) Metrics() *metric.Registry { return r.metrics }

// Start spawns every source, the transform stage, the fan-out loop and
// every output as supervised goroutines under an errgroup whose context
// is canceled on the first failure or on Shutdown (spec.md §4.E
// domain-stack addition: errgroup-supervised task groups). Sources run
// under their own child context so StopSources can stop them without
// affecting the rest of the pipeline (spec.md §4.F staged shutdown).
func (r *Runtime) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	r.group = g
	r.gctx = gctx

	sourcesCtx, sourcesCancel := context.WithCancel(gctx)
	r.sourcesCtx = sourcesCtx
	r.sourcesCancel = sourcesCancel

	r.mu.Lock()
	for _, s := range r.sources {
		r.spawnSourceLocked(s)
	}
	r.mu.Unlock()

	r.transformWG.Add(1)
	g.Go(func() error {
		defer r.transformWG.Done()
		return r.transforms.run(gctx)
	})

	r.fanoutWG.Add(1)
	g.Go(func() error {
		defer r.fanoutWG.Done()
		return r.runFanout(gctx)
	})

	r.mu.Lock()
	for _, o := range r.outputs {
		r.spawnOutputLocked(o)
	}
	r.mu.Unlock()
}

// spawnSourceLocked launches s under the shared errgroup, bound to the
// sources-only context. Callers must hold r.mu.
func (r *Runtime) spawnSourceLocked(s *sourceTask) {
	r.sourcesWG.Add(1)
	r.group.Go(func() error {
		defer r.sourcesWG.Done()
		err := s.run(r.sourcesCtx)
		if err == context.Canceled && r.sourcesCtx.Err() != nil {
			// A stopped source is not a failure: returning the error would
			// make the errgroup cancel gctx under the later stages.
			return nil
		}
		return err
	})
}

// spawnOutputLocked launches o under the shared errgroup. Callers must
// hold r.mu.
func (r *Runtime) spawnOutputLocked(o *outputTask) {
	r.outputsWG.Add(1)
	r.group.Go(func() error {
		defer r.outputsWG.Done()
		return o.run(r.gctx)
	})
}

// AddSource attaches a new source, bound to name, to the runtime. If the
// runtime is already started, the source is spawned immediately;
// otherwise it is picked up by the next Start call. Implements the
// "Creation" control-request category's source half (spec.md §4.F).
func (r *Runtime) AddSource(name naming.ElementName, src Source, spec trigger.Spec, trig trigger.Trigger, isBlocking bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("runtime: a source named %s already exists", name)
	}
	task := newSourceTask(name, src, spec, trig, isBlocking, r.blockingSem, r.transformIn)
	r.sources[name] = task
	if r.group != nil {
		r.spawnSourceLocked(task)
	}
	return nil
}

// AddTransform appends a new transform to the end of the transform
// stage's pipeline, enabled immediately. Implements the "Creation"
// control-request category's transform half (spec.md §4.F).
func (r *Runtime) AddTransform(name naming.ElementName, tf Transform) error {
	return r.transforms.addTransform(name, tf)
}

// AddOutput attaches a new output, bound to name, to the runtime. If the
// runtime is already started, the output is spawned immediately;
// otherwise it is picked up by the next Start call. Implements the
// "Creation" control-request category's output half (spec.md §4.F).
func (r *Runtime) AddOutput(name naming.ElementName, out Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.outputs[name]; exists {
		return fmt.Errorf("runtime: an output named %s already exists", name)
	}
	task := newOutputTask(name, out, r.metrics)
	if r.selfMetrics != nil {
		task.setSelfMetrics(r.selfMetrics)
	}
	r.outputs[name] = task
	r.outputsOrder = append(r.outputsOrder, name)
	if r.group != nil {
		r.spawnOutputLocked(task)
	}
	return nil
}

// runFanout hands every buffer leaving the transform stage (the same
// pointer, not a copy) to each output's own backlog, so one slow output
// cannot block the others
// (spec.md §4.E; broadcast semantics implemented as independent per-output
// channels rather than a shared broadcast queue, since outputs must be
// able to pause/resume/stop independently).
func (r *Runtime) runFanout(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-r.fanoutIn:
			if !ok {
				return nil
			}
			r.mu.RLock()
			order := r.outputsOrder
			outputs := r.outputs
			r.mu.RUnlock()
			for _, name := range order {
				outputs[name].offer(buf)
			}
		}
	}
}

// Wait blocks until every task has exited, returning the first
// non-context-canceled error reported by any of them.
func (r *Runtime) Wait() error {
	err := r.group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Shutdown cancels every task's context immediately and unconditionally.
// Callers that need the staged drain sequence described in spec.md §4.F
// should use the control plane's Drain, which calls StopSources,
// CloseTransformInput, CloseFanout and StopOutputs in order and only
// falls back to this for whatever a timeout leaves behind.
func (r *Runtime) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
}

// waitWithContext blocks until wg's count reaches zero or ctx is done,
// whichever happens first.
func waitWithContext(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopSources cancels every source task's context and waits for all of
// them to exit, without touching the transform stage or any output
// (spec.md §4.F staged shutdown, stage 1: "stop sources & await").
func (r *Runtime) StopSources(ctx context.Context) error {
	if r.sourcesCancel != nil {
		r.sourcesCancel()
	}
	return waitWithContext(ctx, &r.sourcesWG)
}

// CloseTransformInput closes the channel feeding the transform stage and
// waits for the stage to drain whatever was already queued and exit.
// Call only once StopSources has returned, so nothing can still be
// sending on the channel. The transform stage's own context is left
// alive throughout, so its select deterministically takes the
// closed-channel branch instead of racing a context cancellation
// (spec.md §4.F staged shutdown, stage 2: "close transform-input channel
// & await").
func (r *Runtime) CloseTransformInput(ctx context.Context) error {
	close(r.transformIn)
	return waitWithContext(ctx, &r.transformWG)
}

// CloseFanout closes the channel feeding the fan-out loop and waits for
// it to drain whatever was already queued and exit. Call only once
// CloseTransformInput has returned (spec.md §4.F staged shutdown, stage
// 3: "close fanout channel & await output drain", fan-out half).
func (r *Runtime) CloseFanout(ctx context.Context) error {
	close(r.fanoutIn)
	return waitWithContext(ctx, &r.fanoutWG)
}

// StopOutputs closes every output's own backlog channel and waits for
// each to drain whatever it had already queued and exit. Call only once
// CloseFanout has returned, so nothing can still be offering to them
// (spec.md §4.F staged shutdown, stage 3: output half).
func (r *Runtime) StopOutputs(ctx context.Context) error {
	r.mu.RLock()
	outputs := make([]*outputTask, 0, len(r.outputs))
	for _, o := range r.outputs {
		outputs = append(outputs, o)
	}
	r.mu.RUnlock()
	for _, o := range outputs {
		o.closeInput()
	}
	return waitWithContext(ctx, &r.outputsWG)
}

// sourceConfig returns the config cell of the source called name, or nil
// if no such source exists, so the control plane can call
// setTrigger/setPaused on it.
func (r *Runtime) sourceConfig(name naming.ElementName) *sourceConfig {
	r.mu.RLock()
	s, ok := r.sources[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.config
}

// SetSourceTrigger replaces the trigger used by the named source.
func (r *Runtime) SetSourceTrigger(name naming.ElementName, t trigger.Trigger) bool {
	c := r.sourceConfig(name)
	if c == nil {
		return false
	}
	c.setTrigger(t)
	return true
}

// SetSourcePaused pauses or resumes the named source.
func (r *Runtime) SetSourcePaused(name naming.ElementName, paused bool) bool {
	c := r.sourceConfig(name)
	if c == nil {
		return false
	}
	c.setPaused(paused)
	return true
}

// TriggerSourceNow requests an immediate out-of-band poll of the named
// source.
func (r *Runtime) TriggerSourceNow(name naming.ElementName) error {
	c := r.sourceConfig(name)
	if c == nil {
		return ErrNoSuchElement
	}
	t, _ := c.snapshot()
	if t == nil {
		return ErrNoSuchElement
	}
	return t.TriggerNow()
}

// SetTransformEnabled enables or disables the named transform.
func (r *Runtime) SetTransformEnabled(name naming.ElementName, enabled bool) bool {
	i := r.transforms.indexOf(name)
	if i < 0 {
		return false
	}
	r.transforms.setEnabled(i, enabled)
	return true
}

// SetOutputState applies state to the named output.
func (r *Runtime) SetOutputState(name naming.ElementName, state OutputState) bool {
	r.mu.RLock()
	o, ok := r.outputs[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	o.setState(state)
	return true
}

// SourceNames returns the names of every managed source.
func (r *Runtime) SourceNames() []naming.ElementName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]naming.ElementName, 0, len(r.sources))
	for n := range r.sources {
		out = append(out, n)
	}
	return out
}

// TransformNames returns the names of every managed transform, in
// execution order.
func (r *Runtime) TransformNames() []naming.ElementName {
	return r.transforms.namesSnapshot()
}

// OutputNames returns the names of every managed output.
func (r *Runtime) OutputNames() []naming.ElementName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]naming.ElementName(nil), r.outputsOrder...)
}

// SetBlockingWorkers bounds how many blocking sources may have a Poll
// call in flight at once, creating a fixed-size semaphore of capacity n
// shared by every source registered as blocking (present already or
// added later by a Creation request). n <= 0 leaves polling unbounded.
// Call before Start, the same way AttachSelfMetrics is used.
func (r *Runtime) SetBlockingWorkers(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		return
	}
	sem := make(chan struct{}, n)
	r.blockingSem = sem
	for _, s := range r.sources {
		if s.isBlocking {
			s.blockingSem = sem
		}
	}
}

// AttachSelfMetrics wires c into every output and the transform stage so
// they report queue depths and drop counts, and into every output
// created afterwards by a dynamic Creation request. Call it before
// Start; a Runtime that never calls this reports nothing, at zero cost
// beyond a nil check per buffer.
func (r *Runtime) AttachSelfMetrics(c *selfmetrics.Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selfMetrics = c
	for _, o := range r.outputs {
		o.setSelfMetrics(c)
	}
	r.transforms.setSelfMetrics(c)
}
