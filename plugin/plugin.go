// Package plugin defines the five-phase plugin lifecycle
// (init → start → pre-pipeline-start → post-pipeline-start → stop), the
// element-registration API plugins use during start, and the in-process
// event bus that carries domain events between them (spec.md §4.G).
package plugin

import (
	"encoding/json"
	"fmt"
)

// Plugin is implemented by every measurement, transform or output plugin.
// An instance is created once per agent run by a Factory and lives for
// the run's duration (original_source/alumet/src/plugin/mod.rs's `Plugin`
// trait).
type Plugin interface {
	Name() string
	Version() string

	// Start runs before the pipeline exists. It may create metrics and
	// register sources/transforms/outputs via ctx's builder methods.
	Start(ctx *StartContext) error

	// PreStart runs after every enabled plugin's Start but before the
	// runtime spawns any task. It grants bulk read access to the metric
	// registry and lets the plugin subscribe to late metric
	// registrations.
	PreStart(ctx *PreStartContext) error

	// PostStart runs once every element task is live. It hands the
	// plugin a control handle so it can react to events by, for
	// example, adding sources dynamically.
	PostStart(ctx *PostStartContext) error

	// Stop releases any resources the plugin acquired. It is called
	// once, by RunningAgent.WaitForShutdown; if BuildAndStart fails (for
	// example because another plugin's Start or PreStart failed), no
	// plugin's Stop is called.
	Stop() error
}

// Factory constructs a Plugin instance from its raw configuration blob,
// the Go equivalent of the original implementation's `init(config)
// -> instance` step. Factories are registered by name with the agent
// builder (see the agent package), not discovered via reflection.
type Factory func(config json.RawMessage) (Plugin, error)

// Metadata describes one plugin entry in an agent's plugin set: its
// factory, its raw (pre-validated) configuration, and whether it is
// enabled. The agent builder iterates a slice of these in the order it
// was given (spec.md §4.H: "a plugin set (each with metadata + config +
// enabled flag)").
type Metadata struct {
	Name    string
	Version string
	Factory Factory
	Config  json.RawMessage
}

// Init validates m.Config and invokes m.Factory, composing any failure
// with the plugin's name so startup errors are attributable (spec.md
// §4.H: "startup failures abort the agent with a composed error message
// including plugin name").
func (m Metadata) Init() (Plugin, error) {
	if err := ValidateConfig(m.Config); err != nil {
		return nil, fmt.Errorf("plugin %q: %w", m.Name, err)
	}
	p, err := m.Factory(m.Config)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: init failed: %w", m.Name, err)
	}
	return p, nil
}

// Enabled reports whether m's configuration envelope leaves the plugin
// enabled.
func (m Metadata) Enabled() bool { return Enabled(m.Config) }
