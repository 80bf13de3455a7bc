// Package ffi documents the wire-compatible struct shapes a future cgo
// boundary would need to exchange measurement data with a foreign-language
// plugin (spec.md §6's FFI ABI description). No cgo boundary is built
// here — the core has no such plugin loader in scope — but the struct
// layouts are fixed and tested for round-trip stability so a later cgo
// package can be built against them without renegotiating the format.
package ffi

import "encoding/binary"

// Timestamp is the wire form of a measurement point's time, split into
// whole seconds since the Unix epoch and the remaining nanoseconds,
// matching a C `struct { uint64_t secs; uint32_t nanos; }` with no
// padding trickery on the Go side (the encode/decode pair below is
// authoritative, not Go struct layout).
type Timestamp struct {
	Secs  uint64
	Nanos uint32
}

// timestampWireSize is the encoded size of a Timestamp: 8 bytes of
// seconds plus 4 bytes of nanoseconds, little-endian.
const timestampWireSize = 8 + 4

// EncodeTimestamp writes t's wire form to buf, which must be at least
// timestampWireSize bytes.
func EncodeTimestamp(t Timestamp, buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], t.Secs)
	binary.LittleEndian.PutUint32(buf[8:12], t.Nanos)
}

// DecodeTimestamp reads a Timestamp from buf's wire form.
func DecodeTimestamp(buf []byte) Timestamp {
	return Timestamp{
		Secs:  binary.LittleEndian.Uint64(buf[0:8]),
		Nanos: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// resourceIDWireSize is the fixed size of an opaque resource or consumer
// identifier as it would cross the FFI boundary: a discriminant byte
// followed by a 55-byte inline payload (numeric id or short string),
// avoiding any foreign-side allocation for the common cases
// (LocalMachine, Process, CpuCore, ...).
const resourceIDWireSize = 56

// ResourceIDBuffer is the fixed-size, opaque wire form of a resource.ID
// or resource.ID used as a consumer. The core never interprets these
// bytes directly; only the EncodeResourceID* and DecodeResourceID*
// functions do, so that the
// 56-byte layout is the single place the format is pinned down.
type ResourceIDBuffer [resourceIDWireSize]byte

const (
	kindLocalMachine byte = iota
	kindProcess
	kindControlGroup
	kindCpuPackage
	kindCpuCore
	kindDram
	kindGpu
	kindCustom
)

// EncodeResourceIDNumeric packs a numeric-identified resource (Process,
// CpuPackage, CpuCore, Dram) into the wire buffer.
func EncodeResourceIDNumeric(kind byte, id uint32) ResourceIDBuffer {
	var b ResourceIDBuffer
	b[0] = kind
	binary.LittleEndian.PutUint32(b[1:5], id)
	return b
}

// EncodeResourceIDString packs a string-identified resource (ControlGroup
// path, Gpu bus id) into the wire buffer. s is truncated to fit if it
// exceeds the available payload.
func EncodeResourceIDString(kind byte, s string) ResourceIDBuffer {
	var b ResourceIDBuffer
	b[0] = kind
	payload := b[1:]
	n := copy(payload[4:], s)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(n))
	return b
}

// DecodeResourceIDKind returns the discriminant byte of an encoded
// resource id, letting a caller choose between DecodeResourceIDNumeric
// and DecodeResourceIDString.
func DecodeResourceIDKind(b ResourceIDBuffer) byte { return b[0] }

// DecodeResourceIDNumeric reads back a numeric-identified resource.
func DecodeResourceIDNumeric(b ResourceIDBuffer) uint32 {
	return binary.LittleEndian.Uint32(b[1:5])
}

// DecodeResourceIDString reads back a string-identified resource.
func DecodeResourceIDString(b ResourceIDBuffer) string {
	payload := b[1:]
	n := binary.LittleEndian.Uint32(payload[0:4])
	return string(payload[4 : 4+n])
}
