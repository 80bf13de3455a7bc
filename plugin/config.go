package plugin

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadEmbeddedSchema(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadEmbeddedSchema
}

// configEntrySchema validates the common envelope every plugin's raw
// configuration blob must respect (an object, with an optional boolean
// "enabled" field); the core does not know per-plugin schemas, so it
// validates only what spec.md §4.G's "opaque configuration tables" and
// "{plugin.name}.enabled" actually describe, not the plugin-specific
// payload (the teacher's pkg/schema/validate.go validates several
// concrete document kinds selected by a Kind enum; here there is exactly
// one kind, the plugin config envelope).
var configEntrySchema = func() *jsonschema.Schema {
	s, err := jsonschema.Compile("embedFS://schemas/config-entry.schema.json")
	if err != nil {
		panic(fmt.Sprintf("plugin: failed to compile embedded config schema: %v", err))
	}
	return s
}()

// ValidateConfig checks that raw is a JSON object conforming to the
// plugin configuration envelope. An empty raw is treated as `{}`.
func ValidateConfig(raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("plugin: invalid JSON configuration: %w", err)
	}
	if err := configEntrySchema.Validate(v); err != nil {
		return fmt.Errorf("plugin: configuration failed validation: %w", err)
	}
	return nil
}

// Enabled reports the envelope's "enabled" field, defaulting to true when
// absent (spec.md §4.G: "{plugin.name}.enabled = false disables a
// plugin").
func Enabled(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var envelope struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return true
	}
	if envelope.Enabled == nil {
		return true
	}
	return *envelope.Enabled
}
