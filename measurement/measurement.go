// Package measurement implements the data model flowing through the
// pipeline: measurement points, the buffers that carry them between
// stages, and the attribute sets attached to each point (spec.md §3, §4.A).
package measurement

import (
	"strconv"
	"time"

	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/resource"
)

// valueKind discriminates the two numeric representations a point's value
// may carry.
type valueKind uint8

const (
	valueU64 valueKind = iota
	valueF64
)

// Value is a small tagged union over the closed set of numeric types a
// measurement may carry (spec.md §3). It is a plain struct, not an `any`,
// so that pushing a point onto a buffer does not allocate.
type Value struct {
	kind valueKind
	u64  uint64
	f64  float64
}

// U64 wraps an unsigned integer measurement.
func U64(v uint64) Value { return Value{kind: valueU64, u64: v} }

// F64 wraps a floating-point measurement.
func F64(v float64) Value { return Value{kind: valueF64, f64: v} }

// IsU64 reports whether the value was built with U64.
func (v Value) IsU64() bool { return v.kind == valueU64 }

// IsF64 reports whether the value was built with F64.
func (v Value) IsF64() bool { return v.kind == valueF64 }

// AsU64 returns the wrapped integer. The result is meaningless if IsU64 is
// false.
func (v Value) AsU64() uint64 { return v.u64 }

// AsF64 returns the wrapped float. The result is meaningless if IsF64 is
// false.
func (v Value) AsF64() float64 { return v.f64 }

// AsFloat64 returns the value widened to float64 regardless of its kind,
// convenient for sinks that only deal in floats.
func (v Value) AsFloat64() float64 {
	if v.kind == valueU64 {
		return float64(v.u64)
	}
	return v.f64
}

// Equal reports whether two values carry the same kind and bit pattern.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.u64 == other.u64 && v.f64 == other.f64
}

// attributeValueKind discriminates the attribute value variants.
type attributeValueKind uint8

const (
	attrU64 attributeValueKind = iota
	attrF64
	attrBool
	attrString
)

// AttributeValue is a tagged union over {U64, F64, Bool, String}
// (spec.md §3).
type AttributeValue struct {
	kind attributeValueKind
	u64  uint64
	f64  float64
	b    bool
	s    string
}

func AttrU64(v uint64) AttributeValue    { return AttributeValue{kind: attrU64, u64: v} }
func AttrF64(v float64) AttributeValue   { return AttributeValue{kind: attrF64, f64: v} }
func AttrBool(v bool) AttributeValue     { return AttributeValue{kind: attrBool, b: v} }
func AttrString(v string) AttributeValue { return AttributeValue{kind: attrString, s: v} }

// Equal reports whether two attribute values have the same kind and value.
func (a AttributeValue) Equal(other AttributeValue) bool {
	if a.kind != other.kind {
		return false
	}
	switch a.kind {
	case attrU64:
		return a.u64 == other.u64
	case attrF64:
		return a.f64 == other.f64
	case attrBool:
		return a.b == other.b
	case attrString:
		return a.s == other.s
	}
	return false
}

func (a AttributeValue) String() string {
	switch a.kind {
	case attrU64:
		return strconv.FormatUint(a.u64, 10)
	case attrF64:
		return strconv.FormatFloat(a.f64, 'g', -1, 64)
	case attrBool:
		if a.b {
			return "true"
		}
		return "false"
	case attrString:
		return a.s
	default:
		return ""
	}
}

// Attribute is a single (key, value) pair; a Point's attributes are an
// ordered sequence of these, insertion order preserved, keys not repeated
// (spec.md §3).
type Attribute struct {
	Key   string
	Value AttributeValue
}

// AttributeSet is an ordered, append-only sequence of attributes. Keys may
// not repeat: Add returns false (and does nothing) if key is already
// present.
type AttributeSet struct {
	attrs []Attribute
}

// Add appends (key, value) to the set in insertion order. Returns false
// without modifying the set if key is already present.
func (s *AttributeSet) Add(key string, value AttributeValue) bool {
	for _, a := range s.attrs {
		if a.Key == key {
			return false
		}
	}
	s.attrs = append(s.attrs, Attribute{Key: key, Value: value})
	return true
}

// Get looks up the value for key.
func (s AttributeSet) Get(key string) (AttributeValue, bool) {
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return AttributeValue{}, false
}

// Len returns the number of attributes.
func (s AttributeSet) Len() int { return len(s.attrs) }

// Iter returns the attributes in insertion order. The returned slice must
// not be mutated by the caller.
func (s AttributeSet) Iter() []Attribute { return s.attrs }

// Clone returns a deep copy safe to mutate independently.
func (s AttributeSet) Clone() AttributeSet {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return AttributeSet{attrs: out}
}

// equalAsSet compares two attribute sets ignoring order, as required for
// Point equality (spec.md §4.A).
func (s AttributeSet) equalAsSet(other AttributeSet) bool {
	if len(s.attrs) != len(other.attrs) {
		return false
	}
	used := make([]bool, len(other.attrs))
	for _, a := range s.attrs {
		found := false
		for j, b := range other.attrs {
			if used[j] {
				continue
			}
			if a.Key == b.Key && a.Value.Equal(b.Value) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Point is a single observed value for one metric at one instant, tagged
// with resource, consumer and attributes (spec.md §3).
type Point struct {
	Timestamp  time.Time
	Metric     metric.RawMetricID
	Value      Value
	Resource   resource.ID
	Consumer   resource.ID
	Attributes AttributeSet
}

// NewPoint builds a point with no attributes; use AddAttribute afterwards,
// or build the AttributeSet directly and assign it.
func NewPoint(ts time.Time, m metric.RawMetricID, res, consumer resource.ID, v Value) Point {
	return Point{Timestamp: ts, Metric: m, Value: v, Resource: res, Consumer: consumer}
}

// AddAttribute appends an attribute to the point's attribute set.
func (p *Point) AddAttribute(key string, value AttributeValue) {
	p.Attributes.Add(key, value)
}

// Equal compares two points the way the test harness does: metric id,
// timestamp, value, resource, consumer, and attribute *set* (order does
// not matter, per spec.md §4.A).
func (p Point) Equal(other Point) bool {
	return p.Metric == other.Metric &&
		p.Timestamp.Equal(other.Timestamp) &&
		p.Value.Equal(other.Value) &&
		p.Resource.Equal(other.Resource) &&
		p.Consumer.Equal(other.Consumer) &&
		p.Attributes.equalAsSet(other.Attributes)
}

// Buffer stores measured data points and, unlike an Accumulator, allows
// them to be read back and modified in place (e.g. by a transform element,
// spec.md §4.A). The zero value is an empty, ready-to-use buffer.
type Buffer struct {
	points []Point
}

// NewBuffer returns an empty buffer with room for at least capacity points.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{points: make([]Point, 0, capacity)}
}

// Push appends point to the buffer.
func (b *Buffer) Push(point Point) {
	b.points = append(b.points, point)
}

// Len returns the number of points currently stored.
func (b *Buffer) Len() int { return len(b.points) }

// Points returns the buffer's points for read/write access in place, used
// by transforms that rewrite or filter measurements (spec.md §4.A, §4.E).
func (b *Buffer) Points() []Point { return b.points }

// Retain keeps only the points for which keep returns true, preserving
// order, and discards the rest in place.
func (b *Buffer) Retain(keep func(Point) bool) {
	out := b.points[:0]
	for _, p := range b.points {
		if keep(p) {
			out = append(out, p)
		}
	}
	b.points = out
}

// Clear empties the buffer without releasing its backing storage, so it
// can be reused for the next collection round (spec.md §4.E source loop).
func (b *Buffer) Clear() { b.points = b.points[:0] }

// Drain removes and returns every point currently in the buffer, leaving
// it empty, the way a fan-out stage hands ownership of a batch to its
// next consumer without copying it (spec.md §3/§4.A: a MeasurementBuffer
// "supports push, iterate, retain, drain, extend").
func (b *Buffer) Drain() []Point {
	out := b.points
	b.points = nil
	return out
}

// Extend appends every point from other onto b, in order.
func (b *Buffer) Extend(other []Point) {
	b.points = append(b.points, other...)
}

// Clone returns an independent copy of b: mutating the copy (or the
// original) never affects the other. Used wherever the same batch of
// points must be handed to more than one consumer that might otherwise
// mutate the shared backing array (spec.md §4.A: MeasurementBuffer is
// "Cloneable").
func (b *Buffer) Clone() *Buffer {
	cloned := make([]Point, len(b.points))
	copy(cloned, b.points)
	return &Buffer{points: cloned}
}

// Accumulator is the write-only view of a Buffer exposed to sources: it
// allows pushing new measurements but not reading or modifying existing
// ones, matching the original implementation's separation between
// MeasurementAccumulator and MeasurementBuffer (spec.md §4.D, §4.E).
type Accumulator struct {
	buf *Buffer
}

// AsAccumulator returns the write-only accumulator view of b.
func (b *Buffer) AsAccumulator() Accumulator { return Accumulator{buf: b} }

// Push adds a new measurement point. Points are not deduplicated.
func (a Accumulator) Push(point Point) { a.buf.Push(point) }

// View is the read-only view of a Buffer exposed to outputs: it allows
// iterating the points already in the buffer, but carries none of
// Buffer's mutating methods (Push, Retain, Clear, Drain), matching the
// original implementation's distinction between Output::write(&MeasurementBuffer)
// and Transform::apply(&mut MeasurementBuffer)
// (original_source/alumet/src/pipeline/mod.rs; spec.md §4.A's "capability
// restriction" pattern, applied to outputs the same way Accumulator
// already applies it to sources).
type View struct {
	buf *Buffer
}

// AsView returns the read-only view of b.
func (b *Buffer) AsView() View { return View{buf: b} }

// Len returns the number of points in the underlying buffer.
func (v View) Len() int { return v.buf.Len() }

// Points returns the buffer's points for read-only iteration.
func (v View) Points() []Point { return v.buf.points }
