package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/plugin"
	"github.com/alumet-go/alumet/resource"
	"github.com/alumet-go/alumet/trigger"
	"github.com/alumet-go/alumet/units"
)

// countingSource pushes one point per poll for a metric it registers
// itself, exercising plugin.StartContext.AddSourceBuilder end to end.
type countingSource struct{ metricID metric.RawMetricID }

func (s *countingSource) Poll(acc measurement.Accumulator, ts time.Time) error {
	acc.Push(measurement.NewPoint(ts, s.metricID, resource.NewLocalMachine(), resource.NewLocalMachine(), measurement.U64(1)))
	return nil
}

// collectingOutput records how many buffers it has received and signals
// done the first time one arrives.
type collectingOutput struct {
	mu   sync.Mutex
	n    int
	done chan struct{}
}

func newCollectingOutput() *collectingOutput {
	return &collectingOutput{done: make(chan struct{}, 1)}
}

func (o *collectingOutput) Write(buf measurement.View, _ runtime.OutputContext) error {
	o.mu.Lock()
	o.n++
	o.mu.Unlock()
	select {
	case o.done <- struct{}{}:
	default:
	}
	return nil
}

type testPlugin struct {
	out     *collectingOutput
	stopped bool
}

func (p *testPlugin) Name() string    { return "test-plugin" }
func (p *testPlugin) Version() string { return "0.1.0" }

func (p *testPlugin) Start(ctx *plugin.StartContext) error {
	ctx.AddSourceBuilder("probe", trigger.Spec{AllowManualTrigger: true}, func(bc plugin.BuildContext) (runtime.Source, error) {
		id, err := bc.Metrics.Create(metric.Metric{
			Name:      "test_probe_total",
			ValueType: metric.U64,
			Unit:      units.Unprefixed(units.Custom("count", "count")),
		}, metric.Strict)
		if err != nil {
			return nil, err
		}
		return &countingSource{metricID: id}, nil
	})
	ctx.AddBlockingOutput("sink", p.out)
	return nil
}

func (p *testPlugin) PreStart(ctx *plugin.PreStartContext) error   { return nil }
func (p *testPlugin) PostStart(ctx *plugin.PostStartContext) error { return nil }
func (p *testPlugin) Stop() error                                  { p.stopped = true; return nil }

func TestBuildAndStartRunsPluginSourceThroughToOutput(t *testing.T) {
	out := newCollectingOutput()
	p := &testPlugin{out: out}
	b := Builder{
		Plugins: []plugin.Metadata{{
			Name:    "test-plugin",
			Version: "0.1.0",
			Config:  json.RawMessage(`{"enabled": true}`),
			Factory: func(json.RawMessage) (plugin.Plugin, error) { return p, nil },
		}},
		ShutdownTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	running, err := b.BuildAndStart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sources := running.Runtime.SourceNames()
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if err := running.Runtime.TriggerSourceNow(sources[0]); err != nil {
		t.Fatalf("unexpected error triggering source: %v", err)
	}

	select {
	case <-out.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the buffer to reach the output")
	}

	if err := running.Shutdown(); err != nil {
		t.Fatalf("unexpected error on shutdown: %v", err)
	}
	if !p.stopped {
		t.Fatal("expected the plugin to be stopped")
	}
}

type failingStartPlugin struct{}

func (failingStartPlugin) Name() string                            { return "broken" }
func (failingStartPlugin) Version() string                         { return "0.1.0" }
func (failingStartPlugin) Start(*plugin.StartContext) error        { return errStartFailed }
func (failingStartPlugin) PreStart(*plugin.PreStartContext) error  { return nil }
func (failingStartPlugin) PostStart(*plugin.PostStartContext) error { return nil }
func (failingStartPlugin) Stop() error                             { return nil }

type startError struct{}

func (*startError) Error() string { return "start failed" }

var errStartFailed = &startError{}

func TestBuildAndStartFailsWhenPluginStartErrors(t *testing.T) {
	b := Builder{
		Plugins: []plugin.Metadata{{
			Name:    "broken",
			Version: "0.1.0",
			Config:  json.RawMessage(`{"enabled": true}`),
			Factory: func(json.RawMessage) (plugin.Plugin, error) { return failingStartPlugin{}, nil },
		}},
	}

	_, err := b.BuildAndStart(context.Background())
	if err == nil {
		t.Fatal("expected an error when a plugin's Start fails")
	}
}

func TestBuildAndStartSkipsDisabledPlugins(t *testing.T) {
	p := &testPlugin{out: newCollectingOutput()}
	b := Builder{
		Plugins: []plugin.Metadata{{
			Name:    "test-plugin",
			Version: "0.1.0",
			Config:  json.RawMessage(`{"enabled": false}`),
			Factory: func(json.RawMessage) (plugin.Plugin, error) { return p, nil },
		}},
	}

	running, err := b.BuildAndStart(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(running.Runtime.SourceNames()) != 0 {
		t.Fatal("expected a disabled plugin to register no sources")
	}
	if err := running.Shutdown(); err != nil {
		t.Fatalf("unexpected error on shutdown: %v", err)
	}
}
