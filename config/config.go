// Package config loads and validates the agent's own configuration file:
// thread counts, trigger constraints, channel buffer sizes, the optional
// NATS event-mirror address, and the raw per-plugin configuration blobs
// later handed to plugin.Metadata. It is adapted from the teacher's
// internal/config/config.go (a package-level Keys var populated by
// Init from a JSON file, validated against an embedded schema).
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/alumet-go/alumet/internal/alog"
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

var agentConfigSchema = func() *jsonschema.Schema {
	s, err := jsonschema.Compile("embedFS://schemas/agent-config.schema.json")
	if err != nil {
		panic(fmt.Sprintf("config: failed to compile embedded schema: %v", err))
	}
	return s
}()

// NatsConfig configures the optional control-plane event mirror,
// mirroring pipeline/control.MirrorConfig's JSON shape so the file can be
// decoded directly into one and passed to control.NewEventMirror.
type NatsConfig struct {
	Address       string `json:"address"`
	Subject       string `json:"subject"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"creds_file_path,omitempty"`
}

// agentKeys is the shape of Keys, kept as a named type rather than an
// anonymous struct literal. It is unexported; other packages reach the
// bundle only through the Keys variable.
type agentKeys struct {
	AsyncWorkers        int                        `json:"async_workers"`
	BlockingWorkers     int                        `json:"blocking_workers"`
	MaxUpdateIntervalMs int                         `json:"max_update_interval_ms"`
	ChannelBufferSize   int                         `json:"channel_buffer_size"`
	Nats                NatsConfig                 `json:"nats"`
	Plugins             map[string]json.RawMessage `json:"plugins"`
}

// Keys holds the agent-wide configuration, populated with defaults here
// and overridden by Init from the on-disk config file, exactly as the
// teacher's package-level Keys var is meant to be used (read freely after
// Init, never mutated concurrently with it).
var Keys = agentKeys{
	AsyncWorkers:        0, // 0 means "let the runtime pick GOMAXPROCS"
	BlockingWorkers:     4,
	MaxUpdateIntervalMs: 0, // 0 disables the clamp (trigger.Spec.Clamp)
	ChannelBufferSize:   256,
	Plugins:             map[string]json.RawMessage{},
}

// Init reads path as JSON, validates it against the embedded agent
// configuration schema, and decodes it on top of Keys's defaults. A
// missing file is not an error (the defaults stand); any other read,
// validation or decode failure is fatal, matching the teacher's
// config.Init behavior.
func Init(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			alog.Warnf("config: %s not found, using defaults", path)
			return
		}
		alog.Errorf("config: failed to read %s: %v", path, err)
		os.Exit(1)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		alog.Errorf("config: %s is not valid JSON: %v", path, err)
		os.Exit(1)
	}
	if err := agentConfigSchema.Validate(v); err != nil {
		alog.Errorf("config: %s failed schema validation: %v", path, err)
		os.Exit(1)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		alog.Errorf("config: failed to decode %s: %v", path, err)
		os.Exit(1)
	}
}
