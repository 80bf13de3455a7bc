// Package demo is a minimal, self-contained plugin exercising every phase
// of the lifecycle against a real registry and runtime: it registers one
// counter metric, one interval-triggered source that reads it, and one
// output that logs what it receives. It exists to give agent.Builder a
// concrete, always-available plugin for cmd/alumet-agent and its tests.
package demo

import (
	"encoding/json"
	"time"

	"github.com/alumet-go/alumet/internal/alog"
	"github.com/alumet-go/alumet/measurement"
	"github.com/alumet-go/alumet/metric"
	"github.com/alumet-go/alumet/pipeline/runtime"
	"github.com/alumet-go/alumet/plugin"
	"github.com/alumet-go/alumet/resource"
	"github.com/alumet-go/alumet/trigger"
	"github.com/alumet-go/alumet/units"
)

// Config is demo's own plugin configuration, decoded from the "plugins"
// entry in the agent-wide config file (spec.md §4.G).
type Config struct {
	IntervalMs int `json:"interval_ms"`
}

// Plugin counts how many times it has been polled and reports it as a
// monotonic counter metric.
type Plugin struct {
	cfg   Config
	count uint64
}

// Metadata returns the plugin.Metadata entry for this plugin, ready to be
// appended to an agent.Builder's Plugins slice.
func Metadata(rawConfig json.RawMessage) plugin.Metadata {
	return plugin.Metadata{
		Name:    "demo",
		Version: "0.1.0",
		Config:  rawConfig,
		Factory: func(raw json.RawMessage) (plugin.Plugin, error) {
			cfg := Config{IntervalMs: 1000}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &cfg); err != nil {
					return nil, err
				}
			}
			return &Plugin{cfg: cfg}, nil
		},
	}
}

func (p *Plugin) Name() string    { return "demo" }
func (p *Plugin) Version() string { return "0.1.0" }

func (p *Plugin) Start(ctx *plugin.StartContext) error {
	spec := trigger.Spec{
		Interval:           time.Duration(p.cfg.IntervalMs) * time.Millisecond,
		AllowManualTrigger: true,
	}
	ctx.AddSourceBuilder("poll-count", spec, func(bc plugin.BuildContext) (runtime.Source, error) {
		id, err := bc.Metrics.Create(metric.Metric{
			Name:      "demo_poll_count",
			Description: "number of times the demo source has been polled",
			ValueType: metric.U64,
			Unit:      units.Unprefixed(units.Custom("poll", "poll")),
		}, metric.Strict)
		if err != nil {
			return nil, err
		}
		return &source{plugin: p, metricID: id}, nil
	})
	ctx.AddBlockingOutput("log", logOutput{})
	return nil
}

func (p *Plugin) PreStart(*plugin.PreStartContext) error   { return nil }
func (p *Plugin) PostStart(*plugin.PostStartContext) error { return nil }
func (p *Plugin) Stop() error                              { return nil }

type source struct {
	plugin   *Plugin
	metricID metric.RawMetricID
}

func (s *source) Poll(acc measurement.Accumulator, ts time.Time) error {
	s.plugin.count++
	acc.Push(measurement.NewPoint(ts, s.metricID, resource.NewLocalMachine(), resource.NewLocalMachine(), measurement.U64(s.plugin.count)))
	return nil
}

type logOutput struct{}

func (logOutput) Write(buf measurement.View, _ runtime.OutputContext) error {
	for _, p := range buf.Points() {
		alog.Infof("demo output: metric=%d value=%v", p.Metric, p.Value.AsFloat64())
	}
	return nil
}
