package plugin

import (
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/pipeline/control"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/trigger"
)

// BuildContext is handed to a deferred element builder at the moment the
// pipeline is actually assembled, supplying context the plugin could not
// know at registration time (spec.md §4.G: "Deferring construction to a
// builder lets the runtime supply context the plugin couldn't know at
// registration time").
type BuildContext struct {
	Metrics *metric.Registry
}

// SourceBuilder, TransformBuilder and OutputBuilder defer construction of
// an element until the pipeline is built, mirroring the original
// implementation's boxed builder closures
// (original_source/alumet/src/plugin/phases.rs).
type SourceBuilder func(BuildContext) (runtime.Source, error)
type TransformBuilder func(BuildContext) (runtime.Transform, error)
type OutputBuilder func(BuildContext) (runtime.Output, error)

// SourceRegistration is one source a plugin asked to be added during
// Start, ready for the agent builder to resolve into a runtime.SourceEntry.
type SourceRegistration struct {
	Name       naming.ElementName
	Spec       trigger.Spec
	IsBlocking bool
	Builder    SourceBuilder
}

// TransformRegistration is one transform a plugin asked to be added.
type TransformRegistration struct {
	Name    naming.ElementName
	Builder TransformBuilder
}

// OutputRegistration is one output a plugin asked to be added.
type OutputRegistration struct {
	Name    naming.ElementName
	Builder OutputBuilder
}

// StartContext is passed to Plugin.Start. Its Add* methods are the
// registration API of spec.md §4.F: "functions add_source,
// add_blocking_source, add_source_builder, add_transform,
// add_transform_builder, add_blocking_output, add_async_output_builder".
// Every registered name is deduplicated within the owning plugin's
// namespace by a naming.ScopedNameGenerator.
type StartContext struct {
	names   *naming.ScopedNameGenerator
	metrics *metric.Registry

	sources    []SourceRegistration
	transforms []TransformRegistration
	outputs    []OutputRegistration
}

// NewStartContext returns a StartContext scoped to plugin, sharing
// metrics with the rest of the agent.
func NewStartContext(names *naming.ScopedNameGenerator, metrics *metric.Registry) *StartContext {
	return &StartContext{names: names, metrics: metrics}
}

// Metrics returns the shared metric registry, so Start can create metrics
// synchronously before the pipeline's background worker is running.
func (c *StartContext) Metrics() *metric.Registry { return c.metrics }

func constBuilder[T any](v T) func(BuildContext) (T, error) {
	return func(BuildContext) (T, error) { return v, nil }
}

// AddSource registers an already-constructed, non-blocking source.
func (c *StartContext) AddSource(name string, spec trigger.Spec, source runtime.Source) {
	c.sources = append(c.sources, SourceRegistration{
		Name: c.names.SourceName(name), Spec: spec, Builder: constBuilder(source),
	})
}

// AddBlockingSource registers an already-constructed source whose Poll
// may block for a long time (e.g. on I/O). Its Poll calls are gated by
// the runtime's bounded blocking-worker pool rather than running
// unbounded, so many simultaneously-blocked sources cannot pile up
// (spec.md §4.H thread pools: "normal async workers + blocking pool
// size", sized from config.Keys.BlockingWorkers).
func (c *StartContext) AddBlockingSource(name string, spec trigger.Spec, source runtime.Source) {
	c.sources = append(c.sources, SourceRegistration{
		Name: c.names.SourceName(name), Spec: spec, IsBlocking: true, Builder: constBuilder(source),
	})
}

// AddSourceBuilder registers a deferred, non-blocking source.
func (c *StartContext) AddSourceBuilder(name string, spec trigger.Spec, builder SourceBuilder) {
	c.sources = append(c.sources, SourceRegistration{Name: c.names.SourceName(name), Spec: spec, Builder: builder})
}

// AddTransform registers an already-constructed transform.
func (c *StartContext) AddTransform(name string, transform runtime.Transform) {
	c.transforms = append(c.transforms, TransformRegistration{
		Name: c.names.TransformName(name), Builder: constBuilder(transform),
	})
}

// AddTransformBuilder registers a deferred transform.
func (c *StartContext) AddTransformBuilder(name string, builder TransformBuilder) {
	c.transforms = append(c.transforms, TransformRegistration{Name: c.names.TransformName(name), Builder: builder})
}

// AddBlockingOutput registers an already-constructed output that performs
// blocking I/O.
func (c *StartContext) AddBlockingOutput(name string, output runtime.Output) {
	c.outputs = append(c.outputs, OutputRegistration{
		Name: c.names.OutputName(name), Builder: constBuilder(output),
	})
}

// AddAsyncOutputBuilder registers a deferred, non-blocking output.
func (c *StartContext) AddAsyncOutputBuilder(name string, builder OutputBuilder) {
	c.outputs = append(c.outputs, OutputRegistration{Name: c.names.OutputName(name), Builder: builder})
}

// Sources, Transforms and Outputs return what was registered during
// Start, for the agent builder to resolve against a BuildContext.
func (c *StartContext) Sources() []SourceRegistration       { return append([]SourceRegistration(nil), c.sources...) }
func (c *StartContext) Transforms() []TransformRegistration { return append([]TransformRegistration(nil), c.transforms...) }
func (c *StartContext) Outputs() []OutputRegistration       { return append([]OutputRegistration(nil), c.outputs...) }

// PreStartContext is passed to Plugin.PreStart, after every enabled
// plugin's Start has returned but before the runtime spawns any task
// (spec.md §4.G: "grants bulk access to the metric registry and lets
// plugins register metric listeners for late metrics").
type PreStartContext struct {
	metrics *metric.Registry
}

// NewPreStartContext returns a PreStartContext over metrics.
func NewPreStartContext(metrics *metric.Registry) *PreStartContext {
	return &PreStartContext{metrics: metrics}
}

// Metrics returns the shared metric registry.
func (c *PreStartContext) Metrics() *metric.Registry { return c.metrics }

// PostStartContext is passed to Plugin.PostStart, once every element task
// is live (spec.md §4.G: "gives the plugin a control handle so it can,
// for example, add sources dynamically in reaction to events").
type PostStartContext struct {
	control *control.Handle
	names   *naming.ScopedNameGenerator
}

// NewPostStartContext returns a PostStartContext wrapping handle, scoped
// to the owning plugin's name space.
func NewPostStartContext(handle *control.Handle, names *naming.ScopedNameGenerator) *PostStartContext {
	return &PostStartContext{control: handle, names: names}
}

// Control returns the control handle the plugin may use to submit
// requests against the now-running pipeline.
func (c *PostStartContext) Control() *control.Handle { return c.control }

// Names returns the plugin's scoped name generator, for dynamically
// registered elements created after startup.
func (c *PostStartContext) Names() *naming.ScopedNameGenerator { return c.names }
