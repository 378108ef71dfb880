package metrics

import (
	"fmt"
	"time"

	"github.com/NGIOproject/NORNS-sub002/pkg/backend"
	"github.com/NGIOproject/NORNS-sub002/pkg/registry"
	"github.com/NGIOproject/NORNS-sub002/pkg/task"
)

// Collector periodically samples the job/backend registries and the
// task manager into the package's gauges.
type Collector struct {
	jobs     *registry.Registry
	backends *backend.Registry
	tasks    *task.Manager
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(jobs *registry.Registry, backends *backend.Registry, tasks *task.Manager) *Collector {
	return &Collector{
		jobs:     jobs,
		backends: backends,
		tasks:    tasks,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRegistryMetrics()
	c.collectTaskMetrics()
	c.collectTaskManagerHealth()
}

func (c *Collector) collectRegistryMetrics() {
	JobsTotal.Set(float64(c.jobs.Count()))
	NamespacesTotal.Set(float64(c.backends.Count()))
}

func (c *Collector) collectTaskMetrics() {
	pending, running, finished, errored := c.tasks.Counts()
	TasksTotal.WithLabelValues("pending").Set(float64(pending))
	TasksTotal.WithLabelValues("running").Set(float64(running))
	TasksTotal.WithLabelValues("finished").Set(float64(finished))
	TasksTotal.WithLabelValues("error").Set(float64(errored))

	if c.tasks.IsPaused() {
		AcceptPaused.Set(1)
	} else {
		AcceptPaused.Set(0)
	}
}

// collectTaskManagerHealth refreshes the "task-manager" health
// component from the worker pool's live state. A paused task manager
// is still considered healthy (accept_pause is a deliberate admin
// action, not a failure, spec.md §6); the message just reflects it so
// GetHealth surfaces the reason without failing readiness over it.
func (c *Collector) collectTaskManagerHealth() {
	pending, running, _, errored := c.tasks.Counts()

	msg := fmt.Sprintf("pending=%d running=%d errored=%d", pending, running, errored)
	if c.tasks.IsPaused() {
		msg = "accept paused: " + msg
	}
	UpdateComponent("task-manager", true, msg)
}
