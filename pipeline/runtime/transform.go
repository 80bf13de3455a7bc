package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alumet-go/alumet/internal/alog"
	"github.com/alumet-go/alumet/internal/selfmetrics"
	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
)

// maxTransforms bounds how many transforms one pipeline may run, dictated
// by packing the enabled/disabled state of every transform into a single
// 64-bit machine word that the transform task reads once per buffer
// without taking a lock (spec.md §4.E domain-stack note;
// original_source/alumet/src/pipeline/elements/transform/control.rs).
const maxTransforms = 64

// transformStage owns the single linear transform task: every enabled
// transform is applied, in registration order, to each buffer that
// arrives on its input channel, and the result is forwarded downstream.
type transformStage struct {
	// mu guards names/transforms against the concurrent append a dynamic
	// Creation request performs (control plane goroutine) while run reads
	// them (transform-stage goroutine); the bitset itself stays lock-free
	// (spec.md §9).
	mu         sync.RWMutex
	names      []naming.ElementName
	transforms []Transform
	enabled    atomic.Uint64

	metrics *metric.Registry

	in  <-chan *measurement.Buffer
	out chan<- *measurement.Buffer

	selfMetrics *selfmetrics.Collector
}

// setSelfMetrics attaches the optional self-observability collector.
func (s *transformStage) setSelfMetrics(c *selfmetrics.Collector) { s.selfMetrics = c }

// newTransformStage builds a transform stage from transforms in the order
// they must run. All transforms start enabled.
func newTransformStage(
	names []naming.ElementName,
	transforms []Transform,
	metrics *metric.Registry,
	in <-chan *measurement.Buffer,
	out chan<- *measurement.Buffer,
) (*transformStage, error) {
	if len(transforms) > maxTransforms {
		return nil, fmt.Errorf("runtime: at most %d transforms are supported, got %d", maxTransforms, len(transforms))
	}
	st := &transformStage{names: names, transforms: transforms, metrics: metrics, in: in, out: out}
	var mask uint64
	for i := range transforms {
		mask |= 1 << uint(i)
	}
	st.enabled.Store(mask)
	return st, nil
}

// setEnabled flips the bit for the transform at index i.
func (s *transformStage) setEnabled(i int, enabled bool) {
	bit := uint64(1) << uint(i)
	for {
		old := s.enabled.Load()
		var next uint64
		if enabled {
			next = old | bit
		} else {
			next = old &^ bit
		}
		if s.enabled.CompareAndSwap(old, next) {
			return
		}
	}
}

// indexOf returns the bitset position of the transform called name,
// or -1 if none match (reconfiguration targets are resolved once, by the
// control plane, not on the hot path).
func (s *transformStage) indexOf(name naming.ElementName) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, n := range s.names {
		if n.Equal(name) {
			return i
		}
	}
	return -1
}

// namesSnapshot returns a copy of the stage's transform names, in
// execution order.
func (s *transformStage) namesSnapshot() []naming.ElementName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]naming.ElementName(nil), s.names...)
}

// addTransform appends a new transform to the end of the stage's
// pipeline, enabled immediately, supporting a dynamic Creation request
// bound to a running pipeline (spec.md §4.F "Creation").
func (s *transformStage) addTransform(name naming.ElementName, tf Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transforms) >= maxTransforms {
		return fmt.Errorf("runtime: at most %d transforms are supported", maxTransforms)
	}
	i := len(s.transforms)
	s.names = append(s.names, name)
	s.transforms = append(s.transforms, tf)
	s.enabled.Store(s.enabled.Load() | (1 << uint(i)))
	return nil
}

// run applies every enabled transform, in order, to each incoming buffer
// and forwards it on out. It returns when ctx is canceled or in is
// closed.
func (s *transformStage) run(ctx context.Context) error {
	ctxInfo := TransformContext{Metrics: s.metrics}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-s.in:
			if !ok {
				return nil
			}
			if s.selfMetrics != nil {
				s.selfMetrics.TransformQueueDepth.Set(float64(len(s.in)))
			}
			s.mu.RLock()
			mask := s.enabled.Load()
			names := s.names
			transforms := s.transforms
			s.mu.RUnlock()
			for i, t := range transforms {
				if mask&(1<<uint(i)) == 0 {
					continue
				}
				if err := t.Apply(buf, ctxInfo); err != nil {
					te, isTransformErr := err.(*TransformError)
					if isTransformErr && te.Kind == TransformUnexpectedInput {
						alog.WithElement(names[i]).Warnf("unexpected input: %v", err)
						continue
					}
					return fmt.Errorf("fatal error in transform %s: %w", names[i], err)
				}
			}
			select {
			case s.out <- buf:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
