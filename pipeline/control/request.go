// Package control implements the pipeline's control plane: typed,
// matcher-scoped requests (set_trigger, trigger_now, pause/resume, output
// state changes, dynamic element creation, introspection), their fluent
// builders, and the shutdown sequencing that drains sources, then
// transforms, then outputs in order (spec.md §4.F).
package control

import (
	"fmt"
	"time"

	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/trigger"
)

// Request is a control operation ready to be sent through a Handle. Build
// one with Source/Transform/Output/CreateOne/ListElements.
type Request interface {
	apply(*handlerState) error
	// kind labels this request for the control-request latency histogram
	// (spec.md §4.H self-metrics).
	kind() string
}

// sourceRequestBuilder is returned by Source(matcher); chain one verb to
// produce a Request, mirroring the original implementation's fluent
// `request::source(matcher).trigger_now()` style
// (original_source/alumet/src/pipeline/control/request.rs).
type sourceRequestBuilder struct {
	matcher naming.Matcher
}

// Source begins building a request targeting every source matched by m.
func Source(m naming.Matcher) sourceRequestBuilder { return sourceRequestBuilder{matcher: m} }

func (b sourceRequestBuilder) TriggerNow() Request {
	return sourceRequest{matcher: b.matcher, op: sourceOpTriggerNow}
}

func (b sourceRequestBuilder) Pause() Request {
	return sourceRequest{matcher: b.matcher, op: sourceOpPause}
}

func (b sourceRequestBuilder) Resume() Request {
	return sourceRequest{matcher: b.matcher, op: sourceOpResume}
}

func (b sourceRequestBuilder) SetTrigger(t trigger.Trigger) Request {
	return sourceRequest{matcher: b.matcher, op: sourceOpSetTrigger, newTrigger: t}
}

type sourceOp uint8

const (
	sourceOpTriggerNow sourceOp = iota
	sourceOpPause
	sourceOpResume
	sourceOpSetTrigger
)

type sourceRequest struct {
	matcher    naming.Matcher
	op         sourceOp
	newTrigger trigger.Trigger
}

func (r sourceRequest) apply(st *handlerState) error {
	var firstErr error
	for _, name := range st.runtime.SourceNames() {
		if !r.matcher.Matches(name) {
			continue
		}
		switch r.op {
		case sourceOpTriggerNow:
			err := st.triggerNowLimited(name)
			if err == trigger.ErrManualNotAllowed {
				err = ErrManualTriggerNotAllowed
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case sourceOpPause:
			st.runtime.SetSourcePaused(name, true)
		case sourceOpResume:
			st.runtime.SetSourcePaused(name, false)
		case sourceOpSetTrigger:
			st.runtime.SetSourceTrigger(name, r.newTrigger)
		}
	}
	return firstErr
}

func (r sourceRequest) kind() string { return "source" }

// transformRequestBuilder targets transforms matched by a matcher.
type transformRequestBuilder struct {
	matcher naming.Matcher
}

// Transform begins building a request targeting every transform matched
// by m.
func Transform(m naming.Matcher) transformRequestBuilder {
	return transformRequestBuilder{matcher: m}
}

func (b transformRequestBuilder) Enable() Request {
	return transformRequest{matcher: b.matcher, enabled: true}
}

func (b transformRequestBuilder) Disable() Request {
	return transformRequest{matcher: b.matcher, enabled: false}
}

type transformRequest struct {
	matcher naming.Matcher
	enabled bool
}

func (r transformRequest) apply(st *handlerState) error {
	for _, name := range st.runtime.TransformNames() {
		if r.matcher.Matches(name) {
			st.runtime.SetTransformEnabled(name, r.enabled)
		}
	}
	return nil
}

func (r transformRequest) kind() string { return "transform" }

// outputRequestBuilder targets outputs matched by a matcher.
type outputRequestBuilder struct {
	matcher naming.Matcher
}

// Output begins building a request targeting every output matched by m.
func Output(m naming.Matcher) outputRequestBuilder { return outputRequestBuilder{matcher: m} }

func (b outputRequestBuilder) Enable() Request {
	return outputRequest{matcher: b.matcher, state: runtime.OutputRun}
}

func (b outputRequestBuilder) EnableDiscard() Request {
	return outputRequest{matcher: b.matcher, state: runtime.OutputRunDiscard}
}

func (b outputRequestBuilder) Disable() Request {
	return outputRequest{matcher: b.matcher, state: runtime.OutputPause}
}

// RemainingDataStrategy chooses what happens to data already queued for an
// output when it is stopped.
type RemainingDataStrategy uint8

const (
	// Write drains and writes whatever is queued before stopping.
	Write RemainingDataStrategy = iota
	// Ignore discards whatever is queued and stops immediately.
	Ignore
)

func (b outputRequestBuilder) Stop(strategy RemainingDataStrategy) Request {
	state := runtime.OutputStopFinish
	if strategy == Ignore {
		state = runtime.OutputStopNow
	}
	return outputRequest{matcher: b.matcher, state: state}
}

type outputRequest struct {
	matcher naming.Matcher
	state   runtime.OutputState
}

func (r outputRequest) apply(st *handlerState) error {
	for _, name := range st.runtime.OutputNames() {
		if r.matcher.Matches(name) {
			st.runtime.SetOutputState(name, r.state)
		}
	}
	return nil
}

func (r outputRequest) kind() string { return "output" }

// BuildContext is handed to a Creation request's builder closures at the
// moment they run, supplying context they could not know when the
// request was built, mirroring plugin.BuildContext for elements created
// after the pipeline has already started (spec.md §4.F "Creation").
type BuildContext struct {
	Metrics *metric.Registry
}

// SourceBuilder, TransformBuilder and OutputBuilder defer construction of
// a dynamically created element until the Creation request actually
// runs on the control loop, mirroring plugin.SourceBuilder/
// TransformBuilder/OutputBuilder for the post-startup case.
type SourceBuilder func(BuildContext) (runtime.Source, error)
type TransformBuilder func(BuildContext) (runtime.Transform, error)
type OutputBuilder func(BuildContext) (runtime.Output, error)

type sourceCreation struct {
	name       string
	spec       trigger.Spec
	isBlocking bool
	builder    SourceBuilder
}

type transformCreation struct {
	name    string
	builder TransformBuilder
}

type outputCreation struct {
	name    string
	builder OutputBuilder
}

// CreationRequest accumulates builder closures for new sources,
// transforms and outputs to be added to the running pipeline, all bound
// to one plugin's name space once applied (spec.md §4.F "Creation": "add
// one or many sources, transforms, outputs using builder closures ...
// bound to the requesting plugin's name space"). Build one with
// CreateOne and chain Add*Builder calls before sending it through a
// Handle.
type CreationRequest struct {
	names      *naming.ScopedNameGenerator
	sources    []sourceCreation
	transforms []transformCreation
	outputs    []outputCreation
}

// CreateOne begins building a batch of new elements bound to names'
// plugin, mirroring the original implementation's
// `request::create_one().add_source_builder(...)` (spec.md §6). names is
// normally plugin.PostStartContext.Names(), so dynamically created
// elements are deduplicated the same way elements registered at startup
// are.
func CreateOne(names *naming.ScopedNameGenerator) *CreationRequest {
	return &CreationRequest{names: names}
}

// AddSourceBuilder queues a non-blocking source to be built and added
// when this request is applied.
func (r *CreationRequest) AddSourceBuilder(name string, spec trigger.Spec, builder SourceBuilder) *CreationRequest {
	r.sources = append(r.sources, sourceCreation{name: name, spec: spec, builder: builder})
	return r
}

// AddBlockingSourceBuilder queues a source whose Poll may block for a
// long time, to be built and added when this request is applied.
func (r *CreationRequest) AddBlockingSourceBuilder(name string, spec trigger.Spec, builder SourceBuilder) *CreationRequest {
	r.sources = append(r.sources, sourceCreation{name: name, spec: spec, isBlocking: true, builder: builder})
	return r
}

// AddTransformBuilder queues a transform to be built and appended to the
// transform stage when this request is applied.
func (r *CreationRequest) AddTransformBuilder(name string, builder TransformBuilder) *CreationRequest {
	r.transforms = append(r.transforms, transformCreation{name: name, builder: builder})
	return r
}

// AddOutputBuilder queues an output to be built and added when this
// request is applied.
func (r *CreationRequest) AddOutputBuilder(name string, builder OutputBuilder) *CreationRequest {
	r.outputs = append(r.outputs, outputCreation{name: name, builder: builder})
	return r
}

func (r *CreationRequest) apply(st *handlerState) error {
	buildCtx := BuildContext{Metrics: st.runtime.Metrics()}

	for _, sc := range r.sources {
		src, err := sc.builder(buildCtx)
		if err != nil {
			return fmt.Errorf("control: building source %q: %w", sc.name, err)
		}
		trig, err := trigger.New(sc.spec)
		if err != nil {
			return fmt.Errorf("control: source %q: %w", sc.name, err)
		}
		name := r.names.SourceName(sc.name)
		if err := st.runtime.AddSource(name, src, sc.spec, trig, sc.isBlocking); err != nil {
			return err
		}
	}
	for _, tc := range r.transforms {
		tf, err := tc.builder(buildCtx)
		if err != nil {
			return fmt.Errorf("control: building transform %q: %w", tc.name, err)
		}
		name := r.names.TransformName(tc.name)
		if err := st.runtime.AddTransform(name, tf); err != nil {
			return err
		}
	}
	for _, oc := range r.outputs {
		out, err := oc.builder(buildCtx)
		if err != nil {
			return fmt.Errorf("control: building output %q: %w", oc.name, err)
		}
		name := r.names.OutputName(oc.name)
		if err := st.runtime.AddOutput(name, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *CreationRequest) kind() string { return "creation" }

// ElementInfo describes one element currently registered with the
// runtime, as returned by a ListElements introspection request.
type ElementInfo struct {
	Kind naming.ElementKind
	Name naming.ElementName
}

// introspectionRequest lists every element whose kind and name satisfy
// any of filters, writing the result into *out (spec.md §4.F
// "Introspection": "list elements matching a pattern (kind, plugin, name
// filters)"; §6 `request::list_elements(filter)`). A Request's apply
// normally only signals success or failure; introspection needs to
// return data too, so *out is the channel for that.
type introspectionRequest struct {
	filters []naming.Matcher
	out     *[]ElementInfo
}

// ListElements returns a Request that, once applied, writes every
// element matching any of filters into *out. Pass naming.MatchAll(kind)
// to list every element of one kind, or narrower matchers (by plugin or
// by name pattern) to filter further.
func ListElements(out *[]ElementInfo, filters ...naming.Matcher) Request {
	return &introspectionRequest{out: out, filters: filters}
}

func (r *introspectionRequest) matches(kind naming.ElementKind, name naming.ElementName) bool {
	for _, f := range r.filters {
		if f.Kind == kind && f.Matches(name) {
			return true
		}
	}
	return false
}

func (r *introspectionRequest) apply(st *handlerState) error {
	var found []ElementInfo
	for _, name := range st.runtime.SourceNames() {
		if r.matches(naming.Source, name) {
			found = append(found, ElementInfo{Kind: naming.Source, Name: name})
		}
	}
	for _, name := range st.runtime.TransformNames() {
		if r.matches(naming.Transform, name) {
			found = append(found, ElementInfo{Kind: naming.Transform, Name: name})
		}
	}
	for _, name := range st.runtime.OutputNames() {
		if r.matches(naming.Output, name) {
			found = append(found, ElementInfo{Kind: naming.Output, Name: name})
		}
	}
	*r.out = found
	return nil
}

func (r *introspectionRequest) kind() string { return "introspection" }

// triggerRateLimitWindow is how often, per source, a trigger_now request is
// honored; additional requests within the window are silently dropped
// rather than queued, bounding how much extra work a misbehaving control
// client can force onto a single source (spec.md §4.F domain-stack
// addition).
const triggerRateLimitWindow = 10 * time.Millisecond
