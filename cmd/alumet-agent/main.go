// Command alumet-agent is the reference entry point for the measurement
// pipeline: it loads the agent-wide configuration, builds the demo
// plugin's registrations into a running pipeline (spec.md §4.H), and
// blocks until interrupted, draining the pipeline on the way out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alumet-go/alumet/agent"
	"github.com/alumet-go/alumet/config"
	"github.com/alumet-go/alumet/internal/alog"
	"github.com/alumet-go/alumet/plugin"
	"github.com/alumet-go/alumet/plugin/example/demo"
)

func main() {
	configPath := flag.String("config", "alumet.json", "path to the agent configuration file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or err")
	flag.Parse()

	alog.SetLevel(*logLevel)
	config.Init(*configPath)

	demoConfig, ok := config.Keys.Plugins["demo"]
	if !ok {
		demoConfig = json.RawMessage(`{}`)
	}

	b := agent.Builder{
		Plugins: []plugin.Metadata{
			demo.Metadata(demoConfig),
		},
		ShutdownTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	running, err := b.BuildAndStart(ctx)
	if err != nil {
		alog.Errorf("agent: failed to start: %v", err)
		os.Exit(1)
	}

	<-ctx.Done()
	alog.Infof("agent: shutting down")
	if err := running.Shutdown(); err != nil {
		alog.Errorf("agent: shutdown error: %v", err)
		os.Exit(1)
	}
}
