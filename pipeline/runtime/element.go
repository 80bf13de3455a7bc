// Package runtime executes the three kinds of pipeline element (sources,
// transforms, outputs) as supervised goroutines wired together by
// channels, implementing the element runtime (spec.md §4.E).
package runtime

import (
	"time"

	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
)

// Source produces measurements when triggered.
type Source interface {
	// Poll is called once per trigger deadline. It should push zero or
	// more points into acc and return promptly; Poll is never called
	// concurrently with itself for the same source.
	Poll(acc measurement.Accumulator, timestamp time.Time) error
}

// TransformContext exposes read-only pipeline context to a Transform's
// Apply call, notably metric lookups by id.
type TransformContext struct {
	Metrics *metric.Registry
}

// Transform rewrites or filters a buffer of measurements in place before
// it reaches the outputs.
type Transform interface {
	Apply(buf *measurement.Buffer, ctx TransformContext) error
}

// OutputContext exposes read-only pipeline context to an Output's Write
// call.
type OutputContext struct {
	Metrics *metric.Registry
}

// Output consumes a read-only view of a buffer of measurements, e.g. by
// writing them to a file, database or network endpoint. It cannot mutate
// what it is handed, so a slow or misbehaving output can never corrupt
// what its siblings see for the same fan-out round (spec.md §4.A
// capability restriction).
type Output interface {
	Write(buf measurement.View, ctx OutputContext) error
}
