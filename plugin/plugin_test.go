package plugin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/naming"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/trigger"
)

type noopSource struct{}

func (noopSource) Poll(acc measurement.Accumulator, ts time.Time) error { return nil }

type fakePlugin struct{ stopped bool }

func (p *fakePlugin) Name() string                          { return "fake" }
func (p *fakePlugin) Version() string                        { return "0.1.0" }
func (p *fakePlugin) Start(ctx *StartContext) error {
	ctx.AddSource("probe", trigger.Spec{}, noopSource{})
	ctx.AddSource("probe", trigger.Spec{}, noopSource{})
	return nil
}
func (p *fakePlugin) PreStart(ctx *PreStartContext) error   { return nil }
func (p *fakePlugin) PostStart(ctx *PostStartContext) error { return nil }
func (p *fakePlugin) Stop() error                           { p.stopped = true; return nil }

func TestMetadataInitValidatesConfigAndNamesErrors(t *testing.T) {
	m := Metadata{
		Name:    "broken",
		Version: "1.0",
		Config:  json.RawMessage(`not json`),
		Factory: func(json.RawMessage) (Plugin, error) { return &fakePlugin{}, nil },
	}
	_, err := m.Init()
	if err == nil {
		t.Fatal("expected invalid JSON config to fail validation")
	}
}

func TestMetadataInitSucceeds(t *testing.T) {
	m := Metadata{
		Name:    "fake",
		Version: "1.0",
		Config:  json.RawMessage(`{"enabled": true}`),
		Factory: func(json.RawMessage) (Plugin, error) { return &fakePlugin{}, nil },
	}
	p, err := m.Init()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "fake" {
		t.Fatalf("unexpected plugin: %+v", p)
	}
	if !m.Enabled() {
		t.Fatal("expected the plugin to be enabled")
	}
}

func TestMetadataEnabledDefaultsTrueWhenOmitted(t *testing.T) {
	m := Metadata{Config: json.RawMessage(`{}`)}
	if !m.Enabled() {
		t.Fatal("expected enabled to default to true")
	}
}

func TestMetadataEnabledFalseDisablesPlugin(t *testing.T) {
	m := Metadata{Config: json.RawMessage(`{"enabled": false}`)}
	if m.Enabled() {
		t.Fatal("expected enabled:false to be honored")
	}
}

func TestStartContextDeduplicatesRegisteredNames(t *testing.T) {
	names := naming.NewNameGenerator().ForPlugin("fake")
	ctx := NewStartContext(names, metric.NewRegistry())
	fp := &fakePlugin{}
	if err := fp.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sources := ctx.Sources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 source registrations, got %d", len(sources))
	}
	if sources[0].Name.Equal(sources[1].Name) {
		t.Fatalf("expected deduplicated names, got two identical: %v", sources[0].Name)
	}
}

func TestStartContextBuilderResolvesAtBuildTime(t *testing.T) {
	names := naming.NewNameGenerator().ForPlugin("fake")
	reg := metric.NewRegistry()
	ctx := NewStartContext(names, reg)

	built := false
	ctx.AddSourceBuilder("probe", trigger.Spec{}, func(bc BuildContext) (runtime.Source, error) {
		built = true
		if bc.Metrics != reg {
			t.Fatal("expected the build context to carry the shared registry")
		}
		return noopSource{}, nil
	})

	regs := ctx.Sources()
	if len(regs) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(regs))
	}
	if built {
		t.Fatal("builder must not run until the agent resolves it")
	}
	if _, err := regs[0].Builder(BuildContext{Metrics: reg}); err != nil {
		t.Fatalf("unexpected error resolving builder: %v", err)
	}
	if !built {
		t.Fatal("expected the builder to run when resolved")
	}
}
