// Package dispatch implements the keyed request-kind → handler table
// of spec.md §4.3. iotask_submit enqueues its work on pkg/task's worker
// pool and returns immediately with a task id. push_resource and
// pull_resource are the exception: their handlers (pkg/remote.Acceptor)
// read or write the local resource synchronously before responding.
package dispatch
