// Package metrics defines and registers the daemon's Prometheus
// metrics and exposes them via an HTTP handler for scraping, alongside
// health/readiness/liveness endpoints used by process supervisors.
//
// Collector periodically samples the registries and task manager into
// the jobs, namespaces, tasks and accept-paused gauges here. The session,
// request, task-duration, task-submission and remote RPC metrics are
// registered and exported, but no package updates them.
package metrics
