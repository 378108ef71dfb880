/*
Package types defines the core data structures shared across nornsd.

This package contains the fundamental domain model: resource descriptors
and the resources they resolve to, backends (storage namespaces), jobs,
authorised processes, and I/O tasks. Every other package builds on these
types for registry storage, dispatch, and transfer execution.

# Core Types

Resources:
  - ResourceKind: the closed variant of storage kinds a resource can name
  - ResourceDescriptor: what a client sends on the wire
  - Resource: a descriptor bound to a concrete Backend inside the daemon

Backends:
  - BackendKind: path / memory / remote tag for a registered namespace
  - Backend: a registered namespace with mount point, quota, and kind

Jobs and processes:
  - Job: participating hostnames and the process set allowed to submit
  - ProcessTriple: (uid, gid, pid) identifying an authorised client process
  - Credentials: the captured or client-supplied peer identity of a request

Tasks:
  - Task: one unit of data movement with an id, operation, and status
  - TaskStatus, Operation: closed string enums

# Thread Safety

Task guards its status and error code with an internal mutex and keeps
its cancellation flag in an atomic.Bool. The other types carry no
synchronization of their own — the registries and task manager that own
them (pkg/registry, pkg/backend, pkg/task) are responsible for guarding
concurrent access.
*/
package types
