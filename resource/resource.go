// Package resource implements the tagged-variant Resource/Consumer
// identifiers used by measurement points: what is being measured (Resource)
// and on behalf of whom (Consumer) share the same shape, per spec.md §3.
package resource

import "fmt"

// Kind discriminates the variant carried by an ID.
type Kind uint8

const (
	// Invalid marks the zero value of ID as not a valid resource.
	Invalid Kind = iota
	LocalMachine
	Process
	ControlGroup
	CpuPackage
	CpuCore
	Dram
	Gpu
	Custom
)

func (k Kind) String() string {
	switch k {
	case LocalMachine:
		return "LocalMachine"
	case Process:
		return "Process"
	case ControlGroup:
		return "ControlGroup"
	case CpuPackage:
		return "CpuPackage"
	case CpuCore:
		return "CpuCore"
	case Dram:
		return "Dram"
	case Gpu:
		return "Gpu"
	case Custom:
		return "Custom"
	default:
		return "Invalid"
	}
}

// ID identifies a resource or a consumer. Both roles use this same type
// (spec.md §3: "same shape, different roles"); which role a given value
// plays is determined by where it is stored on a measurement.Point, not by
// the type itself.
type ID struct {
	kind Kind

	numericID  uint64 // Process.pid, CpuPackage.id, CpuCore.id, Dram.pkg_id
	stringID   string // ControlGroup.path, Gpu.bus_id
	customKind string // Custom.kind
	customID   string // Custom.id
}

// NewLocalMachine returns the singleton "whole local machine" resource.
func NewLocalMachine() ID { return ID{kind: LocalMachine} }

// NewProcess identifies an OS process by pid.
func NewProcess(pid uint32) ID { return ID{kind: Process, numericID: uint64(pid)} }

// NewControlGroup identifies a cgroup by its filesystem path.
func NewControlGroup(path string) ID { return ID{kind: ControlGroup, stringID: path} }

// NewCpuPackage identifies a physical CPU package by id.
func NewCpuPackage(id uint32) ID { return ID{kind: CpuPackage, numericID: uint64(id)} }

// NewCpuCore identifies a CPU core by id.
func NewCpuCore(id uint32) ID { return ID{kind: CpuCore, numericID: uint64(id)} }

// NewDram identifies the RAM attached to a CPU package.
func NewDram(pkgID uint32) ID { return ID{kind: Dram, numericID: uint64(pkgID)} }

// NewGpu identifies a discrete GPU by its PCI bus id.
func NewGpu(busID string) ID { return ID{kind: Gpu, stringID: busID} }

// NewCustom identifies a plugin-defined resource kind and id.
func NewCustom(kind, id string) ID { return ID{kind: Custom, customKind: kind, customID: id} }

// Kind returns the variant this ID carries.
func (r ID) Kind() Kind { return r.kind }

// Pid returns the process id. Only meaningful when Kind() == Process.
func (r ID) Pid() uint32 { return uint32(r.numericID) }

// Path returns the cgroup path. Only meaningful when Kind() == ControlGroup.
func (r ID) Path() string { return r.stringID }

// PackageID returns the package/core/DRAM index. Only meaningful when
// Kind() is CpuPackage, CpuCore or Dram.
func (r ID) PackageID() uint32 { return uint32(r.numericID) }

// BusID returns the PCI bus id. Only meaningful when Kind() == Gpu.
func (r ID) BusID() string { return r.stringID }

// CustomKind returns the plugin-defined kind tag. Only meaningful when
// Kind() == Custom.
func (r ID) CustomKind() string { return r.customKind }

// CustomValue returns the plugin-defined id. Only meaningful when
// Kind() == Custom.
func (r ID) CustomValue() string { return r.customID }

// Equal reports whether two IDs denote the same resource.
func (r ID) Equal(other ID) bool {
	return r == other
}

// String renders a human-readable identifier, e.g. "CpuCore{id=3}".
func (r ID) String() string {
	switch r.kind {
	case LocalMachine:
		return "LocalMachine"
	case Process:
		return fmt.Sprintf("Process{pid=%d}", r.numericID)
	case ControlGroup:
		return fmt.Sprintf("ControlGroup{path=%s}", r.stringID)
	case CpuPackage:
		return fmt.Sprintf("CpuPackage{id=%d}", r.numericID)
	case CpuCore:
		return fmt.Sprintf("CpuCore{id=%d}", r.numericID)
	case Dram:
		return fmt.Sprintf("Dram{pkg_id=%d}", r.numericID)
	case Gpu:
		return fmt.Sprintf("Gpu{bus_id=%s}", r.stringID)
	case Custom:
		return fmt.Sprintf("Custom{kind=%s,id=%s}", r.customKind, r.customID)
	default:
		return "Invalid"
	}
}
