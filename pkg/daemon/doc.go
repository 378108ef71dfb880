// Package daemon wires the job/backend registries, the task manager,
// the three endpoint listeners, and the request dispatcher into a
// single nornsd process lifecycle: New opens every listener, Run
// begins accepting, and Stop shuts the listeners down and drains queued
// tasks before returning. cmd/nornsd is a thin cobra wrapper around it.
package daemon
