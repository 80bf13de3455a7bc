// Package testhelper provides the deterministic test harness named in
// spec.md §4.I: StartupExpectations, asserted once a pipeline has been
// built, and RuntimeExpectations, which wraps sources/transforms/outputs
// with checked variants that run a caller-supplied assertion exactly
// once and signal when it is done (original_source's
// tests/common/test_plugin.rs checked-element pattern, adapted here to
// this repository's own runtime/naming types).
package testhelper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/pipeline/runtime"
)

// ExpectedMetric names one metric a built pipeline must have registered,
// with the value type it must carry. The metric's unit is not checked.
type ExpectedMetric struct {
	Name      string
	ValueType metric.ValueType
}

// StartupExpectations declares what a pipeline build must have produced:
// metrics of a given name/type, and elements registered under a given
// plugin/element name pair.
type StartupExpectations struct {
	Metrics    []ExpectedMetric
	Sources    []naming.ElementName
	Transforms []naming.ElementName
	Outputs    []naming.ElementName
}

// AssertSatisfiedBy checks every declared expectation against a built
// registry and runtime, failing the test immediately (via require) on
// the first missing metric, and reporting (via assert) every missing
// element so a single run surfaces all registration gaps at once.
func (e StartupExpectations) AssertSatisfiedBy(t *testing.T, metrics *metric.Registry, rt *runtime.Runtime) {
	t.Helper()

	for _, want := range e.Metrics {
		_, m, ok := metrics.ByName(want.Name)
		require.Truef(t, ok, "expected metric %q to be registered", want.Name)
		assert.Equalf(t, want.ValueType, m.ValueType, "metric %q has the wrong value type", want.Name)
	}

	assertNamesPresent(t, "source", e.Sources, rt.SourceNames())
	assertNamesPresent(t, "transform", e.Transforms, rt.TransformNames())
	assertNamesPresent(t, "output", e.Outputs, rt.OutputNames())
}

func assertNamesPresent(t *testing.T, kind string, want, got []naming.ElementName) {
	t.Helper()
	for _, w := range want {
		found := false
		for _, g := range got {
			if g.Equal(w) {
				found = true
				break
			}
		}
		assert.Truef(t, found, "expected %s %s to be registered, registered: %v", kind, w, got)
	}
}

// checkSignal is shared by every checked wrapper below: a request asks
// for the next call to run a check, and a completion channel reports
// that it ran. Each checked element only ever services one check at a
// time; a second Poll/Apply/Write before the first check completes is a
// caller bug, not something the harness papers over.
type checkSignal struct {
	check chan struct{}
	done  chan struct{}
}

func newCheckSignal() checkSignal {
	return checkSignal{check: make(chan struct{}, 1), done: make(chan struct{}, 1)}
}

// request arms the next call to run a check, then blocks until it has.
func (c checkSignal) request(timeout time.Duration) bool {
	select {
	case c.check <- struct{}{}:
	default:
	}
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// CheckedSource wraps a runtime.Source so a test can inject a
// pre-condition before Poll runs and assert on the accumulator it
// produced afterwards (spec.md §4.I).
type CheckedSource struct {
	inner runtime.Source
	sig   checkSignal

	pre   func()
	check func(t *testing.T, buf *measurement.Buffer)
	t     *testing.T
	buf   *measurement.Buffer
}

// NewCheckedSource wraps source. pre runs immediately before every Poll,
// letting a test set external state or a fixed timestamp.
func NewCheckedSource(t *testing.T, source runtime.Source, pre func()) *CheckedSource {
	return &CheckedSource{inner: source, sig: newCheckSignal(), pre: pre, t: t}
}

func (c *CheckedSource) Poll(acc measurement.Accumulator, ts time.Time) error {
	if c.pre != nil {
		c.pre()
	}
	buf := measurement.NewBuffer(8)
	if err := c.inner.Poll(buf.AsAccumulator(), ts); err != nil {
		return err
	}
	for _, p := range buf.Points() {
		acc.Push(p)
	}

	select {
	case <-c.sig.check:
		if c.check != nil {
			c.check(c.t, buf)
		}
		c.sig.done <- struct{}{}
	default:
	}
	return nil
}

// ExpectNextPoll arms check to run against the buffer produced by the
// next Poll call, and blocks until it has (or timeout elapses).
func (c *CheckedSource) ExpectNextPoll(check func(t *testing.T, buf *measurement.Buffer), timeout time.Duration) bool {
	c.check = check
	return c.sig.request(timeout)
}

// CheckedTransform wraps a runtime.Transform so a test can inject an
// input buffer and assert on the (possibly rewritten) output buffer.
type CheckedTransform struct {
	inner runtime.Transform
	sig   checkSignal

	check func(t *testing.T, buf *measurement.Buffer)
	t     *testing.T
}

func NewCheckedTransform(t *testing.T, tf runtime.Transform) *CheckedTransform {
	return &CheckedTransform{inner: tf, sig: newCheckSignal(), t: t}
}

func (c *CheckedTransform) Apply(buf *measurement.Buffer, ctx runtime.TransformContext) error {
	if err := c.inner.Apply(buf, ctx); err != nil {
		return err
	}
	select {
	case <-c.sig.check:
		if c.check != nil {
			c.check(c.t, buf)
		}
		c.sig.done <- struct{}{}
	default:
	}
	return nil
}

// ExpectNextApply arms check to run against the buffer produced by the
// next Apply call.
func (c *CheckedTransform) ExpectNextApply(check func(t *testing.T, buf *measurement.Buffer), timeout time.Duration) bool {
	c.check = check
	return c.sig.request(timeout)
}

// CheckedOutput wraps a runtime.Output so a test can run a
// caller-supplied check after Write returns, with access to the buffer
// that was written.
type CheckedOutput struct {
	inner runtime.Output
	sig   checkSignal

	check func(t *testing.T, buf measurement.View)
	t     *testing.T
}

func NewCheckedOutput(t *testing.T, out runtime.Output) *CheckedOutput {
	return &CheckedOutput{inner: out, sig: newCheckSignal(), t: t}
}

func (c *CheckedOutput) Write(buf measurement.View, ctx runtime.OutputContext) error {
	if err := c.inner.Write(buf, ctx); err != nil {
		return err
	}
	select {
	case <-c.sig.check:
		if c.check != nil {
			c.check(c.t, buf)
		}
		c.sig.done <- struct{}{}
	default:
	}
	return nil
}

// ExpectNextWrite arms check to run against the buffer passed to the
// next Write call.
func (c *CheckedOutput) ExpectNextWrite(check func(t *testing.T, buf measurement.View), timeout time.Duration) bool {
	c.check = check
	return c.sig.request(timeout)
}
