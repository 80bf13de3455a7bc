// Package units implements the closed unit system used by measurement
// points: a base measure (Watt, Joule, Byte, ...) combined with an optional
// decimal SI prefix.
package units

import "fmt"

// Prefix is a decimal SI scaling factor applied to a BaseUnit.
type Prefix float64

// The set of prefixes a PrefixedUnit may carry. Nano is the smallest and
// Tera the largest; Base means "no prefix".
const (
	Nano  Prefix = 1e-9
	Micro Prefix = 1e-6
	Milli Prefix = 1e-3
	Base  Prefix = 1
	Kilo  Prefix = 1e3
	Mega  Prefix = 1e6
	Giga  Prefix = 1e9
	Tera  Prefix = 1e12
)

var prefixShort = map[Prefix]string{
	Nano:  "n",
	Micro: "u",
	Milli: "m",
	Base:  "",
	Kilo:  "k",
	Mega:  "M",
	Giga:  "G",
	Tera:  "T",
}

var prefixLong = map[Prefix]string{
	Nano:  "Nano",
	Micro: "Micro",
	Milli: "Milli",
	Base:  "",
	Kilo:  "Kilo",
	Mega:  "Mega",
	Giga:  "Giga",
	Tera:  "Tera",
}

// Short returns the short SI symbol for the prefix, e.g. "k" or "M".
func (p Prefix) Short() string {
	if s, ok := prefixShort[p]; ok {
		return s
	}
	return fmt.Sprintf("x%g", float64(p))
}

// String returns the long name of the prefix, e.g. "Kilo" or "Mega".
func (p Prefix) String() string {
	if s, ok := prefixLong[p]; ok {
		return s
	}
	return fmt.Sprintf("x%g", float64(p))
}

// measureKind enumerates the closed set of base measures from spec.md §3.
type measureKind uint8

const (
	invalidMeasure measureKind = iota
	measureSecond
	measureWatt
	measureJoule
	measureVolt
	measureAmpere
	measureHertz
	measureDegreeCelsius
	measureByte
	measureUnity
	measurePercent
	measureCustom
)

var measureShort = map[measureKind]string{
	measureSecond:        "s",
	measureWatt:          "W",
	measureJoule:         "J",
	measureVolt:          "V",
	measureAmpere:        "A",
	measureHertz:         "Hz",
	measureDegreeCelsius: "degC",
	measureByte:          "B",
	measureUnity:         "1",
	measurePercent:       "%",
}

var measureLong = map[measureKind]string{
	measureSecond:        "Second",
	measureWatt:          "Watt",
	measureJoule:         "Joule",
	measureVolt:          "Volt",
	measureAmpere:        "Ampere",
	measureHertz:         "Hertz",
	measureDegreeCelsius: "DegreeCelsius",
	measureByte:          "Byte",
	measureUnity:         "Unity",
	measurePercent:       "Percent",
}

// BaseUnit is one of the closed set of measures, or a plugin-defined custom
// unit identified by a unique name with a separate display name.
type BaseUnit struct {
	kind          measureKind
	customUnique  string
	customDisplay string
}

var (
	Second        = BaseUnit{kind: measureSecond}
	Watt          = BaseUnit{kind: measureWatt}
	Joule         = BaseUnit{kind: measureJoule}
	Volt          = BaseUnit{kind: measureVolt}
	Ampere        = BaseUnit{kind: measureAmpere}
	Hertz         = BaseUnit{kind: measureHertz}
	DegreeCelsius = BaseUnit{kind: measureDegreeCelsius}
	Byte          = BaseUnit{kind: measureByte}
	Unity         = BaseUnit{kind: measureUnity}
	Percent       = BaseUnit{kind: measurePercent}
)

// Custom returns a plugin-defined base unit. unique identifies it for
// equality purposes (two Custom units are equal iff unique matches);
// display is only used for rendering.
func Custom(unique, display string) BaseUnit {
	return BaseUnit{kind: measureCustom, customUnique: unique, customDisplay: display}
}

// Valid reports whether b is one of the known base units.
func (b BaseUnit) Valid() bool {
	return b.kind != invalidMeasure
}

// Short returns the short symbol for the base unit, e.g. "W" or "Hz".
func (b BaseUnit) Short() string {
	if b.kind == measureCustom {
		return b.customUnique
	}
	return measureShort[b.kind]
}

// String returns the long name of the base unit, e.g. "Watt".
func (b BaseUnit) String() string {
	if b.kind == measureCustom {
		return b.customDisplay
	}
	return measureLong[b.kind]
}

// Equal reports whether two base units denote the same measure. Two Custom
// units are equal iff their unique identifiers match.
func (b BaseUnit) Equal(other BaseUnit) bool {
	if b.kind != other.kind {
		return false
	}
	if b.kind == measureCustom {
		return b.customUnique == other.customUnique
	}
	return true
}

// PrefixedUnit is a BaseUnit scaled by a decimal Prefix, e.g. "KiloWatt" or
// "MicroSecond". Two units compare equal only if both prefix and base
// match (spec.md §3).
type PrefixedUnit struct {
	Prefix Prefix
	Base   BaseUnit
}

// Unprefixed wraps b with no scaling, e.g. units.Unprefixed(units.Watt).
func Unprefixed(b BaseUnit) PrefixedUnit {
	return PrefixedUnit{Prefix: Base, Base: b}
}

// WithPrefix wraps b with the given prefix, e.g. units.WithPrefix(units.Kilo, units.Watt).
func WithPrefix(p Prefix, b BaseUnit) PrefixedUnit {
	return PrefixedUnit{Prefix: p, Base: b}
}

// Valid reports whether the unit has a known base measure.
func (u PrefixedUnit) Valid() bool {
	return u.Base.Valid()
}

// Equal reports whether two units have the same prefix and the same base
// measure.
func (u PrefixedUnit) Equal(other PrefixedUnit) bool {
	return u.Prefix == other.Prefix && u.Base.Equal(other.Base)
}

// Short renders e.g. "kW" or "MB".
func (u PrefixedUnit) Short() string {
	return u.Prefix.Short() + u.Base.Short()
}

// String renders e.g. "KiloWatt" or "MegaByte".
func (u PrefixedUnit) String() string {
	return u.Prefix.String() + u.Base.String()
}
