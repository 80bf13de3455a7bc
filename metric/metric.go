// Package metric implements the metric registry: the mapping from metric
// names to dense integer ids and back, with a pluggable duplicate-handling
// policy (spec.md §4.B).
package metric

import (
	"fmt"

	"github.com/alumet-go/alumet/units"
)

// ValueType is the closed set of value types a metric's measurements may
// carry (spec.md §3: "the set is closed and known to all components").
type ValueType uint8

const (
	U64 ValueType = iota
	F64
)

func (t ValueType) String() string {
	switch t {
	case U64:
		return "U64"
	case F64:
		return "F64"
	default:
		return "invalid"
	}
}

// MeasurementType constrains the Go types usable with TypedID.
type MeasurementType interface {
	~uint64 | ~float64
}

// wrappedType maps a Go measurement type to its ValueType tag.
func wrappedType[T MeasurementType]() ValueType {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return U64
	case float64:
		return F64
	default:
		panic(fmt.Sprintf("unsupported measurement type %T", zero))
	}
}

// RawMetricID is a dense, monotonically assigned metric identifier that
// does not carry any compile-time value-type information.
type RawMetricID uint64

// TypedID carries a compile-time-checked value type T alongside the raw
// id, mirroring the original implementation's TypedMetricId<T>
// (original_source/alumet/src/metrics/def.rs).
type TypedID[T MeasurementType] struct {
	raw RawMetricID
}

// Raw returns the untyped id backing this typed id.
func (id TypedID[T]) Raw() RawMetricID { return id.raw }

// NewTypedID wraps raw as a TypedID[T], checking that the registry's
// definition of raw actually has value type T. Returns an error if the
// registry disagrees (e.g. the metric was created with a different type).
func NewTypedID[T MeasurementType](raw RawMetricID, reg *Registry) (TypedID[T], error) {
	m, ok := reg.ByID(raw)
	if !ok {
		return TypedID[T]{}, fmt.Errorf("metric: id %d is not registered", raw)
	}
	want := wrappedType[T]()
	if m.ValueType != want {
		return TypedID[T]{}, fmt.Errorf("metric: id %d has type %s, not %s", raw, m.ValueType, want)
	}
	return TypedID[T]{raw: raw}, nil
}

// Metric is the complete definition of a metric, without its id (spec.md §3).
type Metric struct {
	Name        string
	Description string
	ValueType   ValueType
	Unit        units.PrefixedUnit
}

// areCompatible reports whether two definitions agree on name, unit and
// value type; description is ignored (spec.md §4.B).
func areCompatible(a, b Metric) bool {
	return a.Name == b.Name && a.Unit.Equal(b.Unit) && a.ValueType == b.ValueType
}

// areIdentical additionally requires the descriptions to match.
func areIdentical(a, b Metric) bool {
	return areCompatible(a, b) && a.Description == b.Description
}

// DuplicatePolicy selects when a new registration is rejected as a
// duplicate of an existing metric with the same name (spec.md §4.B).
type DuplicatePolicy uint8

const (
	// Strict: any name clash is an error.
	Strict DuplicatePolicy = iota
	// Different: identical definitions are idempotent; divergent ones error.
	Different
	// Incompatible: compatible-but-different descriptions are tolerated;
	// incompatible definitions error.
	Incompatible
)

// isDuplicate applies the policy: is candidate a duplicate of existing
// (which shares its name)?
func (p DuplicatePolicy) isDuplicate(existing, candidate Metric) bool {
	switch p {
	case Strict:
		return true // any name clash is an error under Strict
	case Different:
		return !areIdentical(existing, candidate)
	case Incompatible:
		return !areCompatible(existing, candidate)
	default:
		return true
	}
}

// Conflict reports that a metric registration collided with an existing
// definition under the active DuplicatePolicy.
type Conflict struct {
	Name     string
	Existing Metric
	Proposed Metric
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("metric: %q conflicts with an existing definition", c.Name)
}
