package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NGIOproject/NORNS-sub002/pkg/backend"
	"github.com/NGIOproject/NORNS-sub002/pkg/config"
	"github.com/NGIOproject/NORNS-sub002/pkg/dispatch"
	"github.com/NGIOproject/NORNS-sub002/pkg/endpoint"
	"github.com/NGIOproject/NORNS-sub002/pkg/events"
	"github.com/NGIOproject/NORNS-sub002/pkg/log"
	"github.com/NGIOproject/NORNS-sub002/pkg/metrics"
	"github.com/NGIOproject/NORNS-sub002/pkg/registry"
	"github.com/NGIOproject/NORNS-sub002/pkg/remote"
	"github.com/NGIOproject/NORNS-sub002/pkg/task"
	"github.com/NGIOproject/NORNS-sub002/pkg/transfer"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/rs/zerolog"
)

// Daemon owns every long-lived component of a running nornsd process.
type Daemon struct {
	cfg *config.Config

	jobs      *registry.Registry
	backends  *backend.Registry
	tasks     *task.Manager
	events    *events.Broker
	metrics   *metrics.Collector
	endpoints *endpoint.Set
	dispatch  *dispatch.Dispatcher

	logger zerolog.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Daemon from a parsed configuration. Namespaces listed
// in cfg are registered into the backend registry before the daemon
// starts serving.
func New(cfg *config.Config) (*Daemon, error) {
	d := &Daemon{
		cfg:      cfg,
		jobs:     registry.New(),
		backends: backend.New(),
		events:   events.NewBroker(),
		logger:   log.WithComponent("daemon"),
		stopped:  make(chan struct{}),
	}

	for _, ns := range cfg.Namespaces {
		b := types.Backend{
			NamespaceID: ns.NamespaceID,
			Kind:        ns.Type,
			MountPoint:  ns.MountPoint,
			Capacity:    uint64(ns.Capacity),
			Tracked:     ns.TrackContents,
		}
		if err := d.backends.Register(b); err != nil {
			return nil, fmt.Errorf("registering namespace %q: %w", ns.NamespaceID, err)
		}
	}

	client := remote.NewClient(cfg.Global.RemotePort)
	matrix := transfer.DefaultMatrix(64*1024, client)

	d.tasks = task.New(task.Config{
		Workers:  int(cfg.Global.Workers),
		Matrix:   matrix,
		Backends: d.backends,
		Events:   d.events,
	})

	d.metrics = metrics.NewCollector(d.jobs, d.backends, d.tasks)
	d.dispatch = dispatch.New(d.jobs, d.backends, d.tasks, matrix, d.Stop)

	set, err := endpoint.New(endpoint.Config{
		GlobalSocket:  cfg.Global.GlobalSocket,
		ControlSocket: cfg.Global.ControlSocket,
		BindAddress:   cfg.Global.BindAddress,
		RemotePort:    cfg.Global.RemotePort,
		Dispatcher:    d.dispatch,
	})
	if err != nil {
		return nil, fmt.Errorf("opening endpoints: %w", err)
	}
	d.endpoints = set

	return d, nil
}

// Run starts every background component and blocks serving
// connections until ctx is cancelled, then drains and stops.
func (d *Daemon) Run(ctx context.Context) error {
	d.events.Start()
	d.tasks.Start()
	d.metrics.Start()

	for _, name := range d.endpoints.Names() {
		metrics.RegisterComponent("endpoint:"+name, true, "listening")
	}
	metrics.RegisterComponent("task-manager", true, "running")

	d.logger.Info().Msg("nornsd started")

	go func() {
		<-ctx.Done()
		d.Stop()
	}()

	d.endpoints.Serve(ctx)
	<-d.stopped
	return nil
}

// Stop begins a graceful shutdown: it stops accepting new connections,
// waits (bounded) for in-flight sessions to drain, then stops the task
// manager and background collectors. It is safe to call multiple
// times and is what a "shutdown" command or a terminating signal both
// invoke.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info().Msg("nornsd shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.endpoints.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn().Err(err).Msg("endpoint shutdown did not complete cleanly")
		}

		d.tasks.Stop()
		d.metrics.Stop()
		d.events.Stop()

		close(d.stopped)
	})
}
